package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/legal-rag-assistant/internal/adapters/mcp"
	"github.com/kirillkom/legal-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/cache/redis"
	"github.com/kirillkom/legal-rag-assistant/internal/observability/logging"
)

func main() {
	transport := flag.String("transport", "stdio", "stdio or http")
	flag.Parse()

	cfg := config.Load()
	// stdout belongs to the stdio transport.
	logger := logging.NewJSONLogger("mcp", cfg.LogLevel)
	if *transport == "stdio" {
		logger = logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	}
	slog.SetDefault(logger)

	stack, err := bootstrap.NewSearchStack(cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}

	var cache ports.DecompositionCache
	if cfg.RedisAddr != "" {
		redisCache := redis.New(redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      time.Duration(cfg.DecompositionCacheTTLSeconds) * time.Second,
		})
		defer redisCache.Close()
		cache = redisCache
	}
	queryUC, err := bootstrap.NewQueryStack(cfg, stack, cache, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}

	s := mcpadapter.NewTools(queryUC, queryUC).NewServer()
	switch *transport {
	case "http":
		slog.Info("mcp_listening", "port", cfg.MCPPort)
		if err := server.NewStreamableHTTPServer(s).Start(":" + cfg.MCPPort); err != nil {
			slog.Error("mcp_server_failed", "error", err.Error())
			os.Exit(1)
		}
	default:
		if err := server.ServeStdio(s); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("mcp_server_failed", "error", err.Error())
			os.Exit(1)
		}
	}
}
