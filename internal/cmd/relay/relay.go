// Package relay parses relay command flags and drains the sqlite signal
// outbox into a Redis stream.
package relay

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	entrypoint "github.com/powerhouse-inc/contributor-billing/internal/platform/cmd"
	docrelay "github.com/powerhouse-inc/contributor-billing/internal/services/document/relay"
	"github.com/powerhouse-inc/contributor-billing/internal/services/document/storage/sqlite"
)

// Config holds relay command configuration.
type Config struct {
	DBPath          string        `env:"DB_PATH" envDefault:"data/documents.db"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	Stream          string        `env:"RELAY_STREAM" envDefault:"contributor-billing:signals"`
	StreamMaxLen    int64         `env:"RELAY_STREAM_MAX_LEN" envDefault:"100000"`
	BatchSize       int           `env:"RELAY_BATCH_SIZE" envDefault:"64"`
	PollInterval    time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"2s"`
	ShutdownTimeout time.Duration `env:"RELAY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The sqlite journal path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "The Redis server address")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "The Redis database number")
	fs.StringVar(&cfg.Stream, "stream", cfg.Stream, "The Redis stream signals are appended to")
	fs.Int64Var(&cfg.StreamMaxLen, "stream-max-len", cfg.StreamMaxLen, "Approximate stream length cap (0 = unbounded)")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Envelopes claimed per drain pass")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Outbox poll interval")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Time allowed to flush telemetry on exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("db path is required")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("redis address is required")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("batch size must be > 0")
	}
	return nil
}

// Run drains the outbox until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	options := entrypoint.RunOptions{ShutdownTimeout: cfg.ShutdownTimeout}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceRelay, options, func(ctx context.Context) error {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite journal: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close sqlite journal: %v", closeErr)
			}
		}()

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				log.Printf("close redis client: %v", closeErr)
			}
		}()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}

		publisher, err := docrelay.NewRedisPublisher(client, cfg.Stream, docrelay.WithMaxLen(cfg.StreamMaxLen))
		if err != nil {
			return err
		}
		relay := docrelay.Relay{
			Outbox:    store,
			Publisher: publisher,
			BatchSize: cfg.BatchSize,
		}
		log.Printf("relaying signals from %s to stream %s every %s", cfg.DBPath, cfg.Stream, cfg.PollInterval)
		return relay.Run(ctx, cfg.PollInterval)
	})
}
