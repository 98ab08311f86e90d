package main

import (
	"log/slog"
	"os"

	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "indexer", cfg.LogLevel))

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
