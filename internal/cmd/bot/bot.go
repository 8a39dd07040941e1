// Package bot parses bot command flags and launches the bot runtime.
package bot

import (
	"context"
	"flag"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/k1rl3s/chessbot/internal/platform/cmd"
	"github.com/k1rl3s/chessbot/internal/platform/discovery"
	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
	botserver "github.com/k1rl3s/chessbot/internal/services/bot/app"
)

// Config holds bot command configuration.
type Config struct {
	Token              string        `env:"CHESSBOT_TOKEN"`
	HealthPort         int           `env:"CHESSBOT_HEALTH_PORT" envDefault:"8082"`
	APIAddr            string        `env:"CHESSBOT_API_ADDR"`
	DBPath             string        `env:"CHESSBOT_DB_PATH" envDefault:"src/database/db_files/chessbot.db"`
	PollInterval       time.Duration `env:"CHESSBOT_POLL_INTERVAL" envDefault:"15s"`
	CheckpointInterval time.Duration `env:"CHESSBOT_CHECKPOINT_INTERVAL" envDefault:"5m"`
	DialTimeout        time.Duration `env:"CHESSBOT_DIAL_TIMEOUT" envDefault:"2s"`
	RequestTimeout     time.Duration `env:"CHESSBOT_REQUEST_TIMEOUT" envDefault:"30s"`
	RetryBackoff       time.Duration `env:"CHESSBOT_RETRY_BACKOFF" envDefault:"200ms"`
	RetryMaxDelay      time.Duration `env:"CHESSBOT_RETRY_MAX_DELAY" envDefault:"5s"`
	GlobalTop          int           `env:"CHESSBOT_GLOBAL_TOP" envDefault:"10"`
	GlobalTopTTL       time.Duration `env:"CHESSBOT_GLOBAL_TOP_TTL" envDefault:"1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.APIAddr = discovery.OrDefaultHTTPBaseURL(cfg.APIAddr, discovery.ServiceAPI)
	fs.StringVar(&cfg.Token, "token", cfg.Token, "The bot platform credential")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The bot health gRPC server port")
	fs.StringVar(&cfg.APIAddr, "api-addr", cfg.APIAddr, "The chess engine API base URL")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The bot SQLite database path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Engine health poll interval")
	fs.DurationVar(&cfg.CheckpointInterval, "checkpoint-interval", cfg.CheckpointInterval, "WAL checkpoint interval")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Dependency dial timeout")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Engine request timeout")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	fs.IntVar(&cfg.GlobalTop, "global-top", cfg.GlobalTop, "Global leaderboard length")
	fs.DurationVar(&cfg.GlobalTopTTL, "global-top-ttl", cfg.GlobalTopTTL, "Global leaderboard snapshot TTL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the process must not start with.
// Failures here are configuration-class and exit the process non-zero
// before any I/O happens.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return apperrors.New(apperrors.CodeConfigMissingValue, "CHESSBOT_TOKEN is required")
	}
	if strings.TrimSpace(c.APIAddr) == "" {
		return apperrors.New(apperrors.CodeConfigMissingValue, "CHESSBOT_API_ADDR is required")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return apperrors.WithMetadata(apperrors.CodeConfigInvalidValue,
			"CHESSBOT_HEALTH_PORT is out of range",
			map[string]string{"port": strconv.Itoa(c.HealthPort)})
	}
	return nil
}

// Run starts the bot runtime.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBot, func(context.Context) error {
		return botserver.Run(ctx, botserver.RuntimeConfig{
			HealthPort:         cfg.HealthPort,
			EngineBaseURL:      cfg.APIAddr,
			DBPath:             cfg.DBPath,
			PollInterval:       cfg.PollInterval,
			CheckpointInterval: cfg.CheckpointInterval,
			DialTimeout:        cfg.DialTimeout,
			RequestTimeout:     cfg.RequestTimeout,
			RetryBackoff:       cfg.RetryBackoff,
			RetryMaxDelay:      cfg.RetryMaxDelay,
			TopLimit:           cfg.GlobalTop,
			TopTTL:             cfg.GlobalTopTTL,
		})
	})
}
