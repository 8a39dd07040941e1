package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	platformgrpc "github.com/k1rl3s/chessbot/internal/platform/grpc"
	"github.com/k1rl3s/chessbot/internal/platform/timeouts"
	"github.com/k1rl3s/chessbot/internal/services/bot/engine"
	botsqlite "github.com/k1rl3s/chessbot/internal/services/bot/storage/sqlite"
)

// RuntimeConfig controls bot startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	HealthPort         int
	EngineBaseURL      string
	DBPath             string
	PollInterval       time.Duration
	CheckpointInterval time.Duration
	DialTimeout        time.Duration
	RequestTimeout     time.Duration
	RetryBackoff       time.Duration
	RetryMaxDelay      time.Duration
	TopLimit           int
	TopTTL             time.Duration

	// Serve is the chat frontend given the wired service; nil runs the
	// process headless with health and maintenance only.
	Serve func(ctx context.Context, service *Service) error
}

// EngineServiceName is the gRPC health service name tracking the peer.
const EngineServiceName = "bot.engine"

const (
	defaultHealthPort         = 8082
	defaultDBPath             = "src/database/db_files/chessbot.db"
	defaultPollInterval       = 15 * time.Second
	defaultCheckpointInterval = 5 * time.Minute
)

// Run starts the bot runtime: durable storage, the engine client, the
// health server and the supervision loop. It blocks until the context is
// canceled, then shuts its dependencies down within the grace period.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.EngineBaseURL) == "" {
		return fmt.Errorf("engine base URL is required")
	}
	if cfg.HealthPort <= 0 {
		cfg.HealthPort = defaultHealthPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = defaultCheckpointInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = timeouts.GRPCDial
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create bot storage dir: %w", err)
		}
	}

	store, err := botsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open bot sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close bot sqlite store: %v", closeErr)
		}
	}()

	engineClient := engine.NewClient(cfg.EngineBaseURL, &http.Client{}, engine.Options{
		RequestTimeout: cfg.RequestTimeout,
		RetryBackoff:   cfg.RetryBackoff,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}, log.Printf)

	if err := engineClient.WaitReady(ctx); err != nil {
		return fmt.Errorf("wait for engine API: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(EngineServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(timeouts.Shutdown):
			grpcServer.Stop()
		}
		<-serveErr
	}()

	// The orchestrator and the peer probe this process over the health
	// protocol; verify the endpoint answers before reporting ready.
	healthAddr := net.JoinHostPort("localhost", strconv.Itoa(cfg.HealthPort))
	healthConn, err := platformgrpc.DialWithHealth(ctx, nil, healthAddr, cfg.DialTimeout, log.Printf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		return fmt.Errorf("verify health endpoint: %w", err)
	}
	if closeErr := healthConn.Close(); closeErr != nil {
		log.Printf("close health check connection: %v", closeErr)
	}

	service := NewService(store, engineClient, ServiceOptions{
		TopLimit: cfg.TopLimit,
		TopTTL:   cfg.TopTTL,
	})

	supervisor := newSupervisor(store, engineClient, healthServer, cfg.PollInterval, cfg.CheckpointInterval, log.Printf)

	log.Printf("bot health server listening at %v", listener.Addr())
	if cfg.Serve == nil {
		return supervisor.run(ctx)
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- supervisor.run(ctx)
	}()
	if err := cfg.Serve(ctx, service); err != nil {
		return err
	}
	return <-loopErr
}

// healthSetter is the slice of the gRPC health server the supervisor
// flips statuses on.
type healthSetter interface {
	SetServingStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus)
}

// enginePinger probes the peer with one bounded request.
type enginePinger interface {
	Ping(ctx context.Context) error
}

// checkpointer folds the write-ahead log into the database file.
type checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// supervisor runs the periodic maintenance loop: it mirrors engine
// reachability into the health status and keeps the WAL bounded. Peer
// outages are logged and retried on the next tick, never fatal.
type supervisor struct {
	store              checkpointer
	engine             enginePinger
	health             healthSetter
	pollInterval       time.Duration
	checkpointInterval time.Duration
	logf               func(string, ...any)
}

func newSupervisor(store checkpointer, engineClient enginePinger, healthServer healthSetter, pollInterval, checkpointInterval time.Duration, logf func(string, ...any)) *supervisor {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &supervisor{
		store:              store,
		engine:             engineClient,
		health:             healthServer,
		pollInterval:       pollInterval,
		checkpointInterval: checkpointInterval,
		logf:               logf,
	}
}

func (s *supervisor) run(ctx context.Context) error {
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()
	checkpoint := time.NewTicker(s.checkpointInterval)
	defer checkpoint.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
			err := s.engine.Ping(ctx)
			if err != nil && serving {
				s.logf("engine API unreachable: %v", err)
				s.health.SetServingStatus(EngineServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				serving = false
			}
			if err == nil && !serving {
				s.logf("engine API reachable again")
				s.health.SetServingStatus(EngineServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
				serving = true
			}
		case <-checkpoint.C:
			if err := s.store.Checkpoint(ctx); err != nil {
				s.logf("checkpoint bot store: %v", err)
			}
		}
	}
}
