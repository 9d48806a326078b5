// Package cache keeps synthesized interviewer audio in Redis so repeated
// questions (the opening line, the closing statement) are not re-synthesized.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 24 * time.Hour
	DefaultPrefix = "coach:tts:"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Store is a TTL byte store in Redis.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewStore connects to Redis and pings it.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Store{rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix}, nil
}

// Get returns the cached value and whether it was present.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// synthesizer is the subset of tts.Synthesizer the cache wraps.
type synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Voice() string
}

// Synthesizer serves synthesized audio from the Store and fills it on a miss.
// Cache failures are logged and bypassed.
type Synthesizer struct {
	next   synthesizer
	store  *Store
	logger *slog.Logger
}

func NewSynthesizer(next synthesizer, store *Store, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{next: next, store: store, logger: logger}
}

func (c *Synthesizer) Voice() string {
	return c.next.Voice()
}

func (c *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	key := Key(c.next.Voice(), text)
	audio, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("tts cache read failed", "err", err)
	} else if ok {
		c.logger.Debug("tts cache hit", "key", key)
		return audio, nil
	}

	audio, err = c.next.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, audio); err != nil {
		c.logger.Warn("tts cache write failed", "err", err)
	}
	return audio, nil
}

// Key derives the cache key of a voice/text pair.
func Key(voice, text string) string {
	sum := sha256.Sum256([]byte(voice + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
