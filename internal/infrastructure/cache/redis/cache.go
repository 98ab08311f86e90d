package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

const (
	keyPrefix  = "legal:decompose:"
	defaultTTL = 24 * time.Hour
)

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DecompositionCache memoizes decomposer output keyed by act and the
// whitespace-normalized, lowercased question.
type DecompositionCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func New(opts Options) *DecompositionCache {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	return NewWithClient(client, opts.TTL)
}

func NewWithClient(client *goredis.Client, ttl time.Duration) *DecompositionCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &DecompositionCache{client: client, ttl: ttl}
}

func (c *DecompositionCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *DecompositionCache) Close() error {
	return c.client.Close()
}

func (c *DecompositionCache) Get(ctx context.Context, question string, act domain.Act) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(question, act)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, domain.WrapError(domain.ErrTemporary, "redis get decomposition", err)
	}
	var subQueries []string
	if err := json.Unmarshal(raw, &subQueries); err != nil {
		return nil, false, fmt.Errorf("decode cached decomposition: %w", err)
	}
	return subQueries, true, nil
}

func (c *DecompositionCache) Put(ctx context.Context, question string, act domain.Act, subQueries []string) error {
	if subQueries == nil {
		subQueries = []string{}
	}
	raw, err := json.Marshal(subQueries)
	if err != nil {
		return fmt.Errorf("encode decomposition: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(question, act), raw, c.ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis set decomposition", err)
	}
	return nil
}

func cacheKey(question string, act domain.Act) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	if !act.IsScoped() {
		act = domain.ActAll
	}
	sum := sha256.Sum256([]byte(string(act) + "\x00" + normalized))
	return keyPrefix + hex.EncodeToString(sum[:])
}
