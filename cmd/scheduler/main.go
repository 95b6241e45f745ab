package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/manuel-Igtm/meeting-tool/internal/application"
	"github.com/manuel-Igtm/meeting-tool/internal/claim"
	"github.com/manuel-Igtm/meeting-tool/internal/config"
	httptransport "github.com/manuel-Igtm/meeting-tool/internal/http"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence/memory"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence/postgres"
	"github.com/manuel-Igtm/meeting-tool/internal/persistence/sqlite"
	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
	"github.com/manuel-Igtm/meeting-tool/internal/seed"
	"github.com/manuel-Igtm/meeting-tool/internal/telemetry"
)

const serviceName = "meeting-scheduler"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], logger); err != nil {
		logger.Error("scheduler exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, logger *slog.Logger) error {
	flags := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	seedPath := flags.String("seed", "", "YAML seed document applied after migrations")
	migrateOnly := flags.Bool("migrate-only", false, "apply migrations and the seed document, then exit")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if *seedPath != "" {
		doc, err := seed.LoadFile(*seedPath)
		if err != nil {
			return err
		}
		summary, err := seed.Apply(ctx, a.seedServices(), doc)
		if err != nil {
			return err
		}
		logger.Info("seed applied",
			"participants", summary.Participants,
			"windows", summary.Windows,
			"blocked_time", summary.BlockedTime,
			"meetings", summary.Meetings,
		)
	}
	if *migrateOnly {
		return nil
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(a.handler, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening",
		"addr", server.Addr,
		"timezone", cfg.Location.String(),
		"postgres", cfg.UsesPostgres(),
		"redis_claims", cfg.RedisAddr != "",
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// app holds the wired process: storage, claims, services and the HTTP handler.
type app struct {
	store        persistence.Store
	redis        *redis.Client
	scheduling   *application.SchedulingService
	meetings     *application.MeetingService
	availability *application.AvailabilityService
	participants *application.ParticipantService
	handler      http.Handler
	logger       *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{store: store, logger: logger}

	var claimer scheduler.Claimer = claim.NewMemory()
	checks := map[string]httptransport.Pinger{"store": store}
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		claimer = claim.NewRedis(a.redis, cfg.ClaimTTL, "sched")
		checks["redis"] = httptransport.PingFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	engine := scheduler.NewEngine(application.NewStoreSource(store), cfg.Policy(), scheduler.WithClaimer(claimer))
	ids := uuid.NewString
	now := time.Now

	a.scheduling = application.NewSchedulingService(engine, cfg.ReportCacheTTL, now, logger)
	a.meetings = application.NewMeetingService(store, engine, a.scheduling, ids, now, logger)
	a.availability = application.NewAvailabilityService(store, cfg.Location, a.scheduling, ids, now, logger)
	a.participants = application.NewParticipantService(store, ids, now, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Scheduling: httptransport.NewSchedulingHandler(a.scheduling, cfg.Location, now, logger),
		Meetings:   httptransport.NewMeetingHandler(a.meetings, logger),
		Availability: httptransport.NewAvailabilityHandler(a.availability, httptransport.AvailabilityOptions{
			Location:      cfg.Location,
			Now:           now,
			ImportHorizon: cfg.MaxRecurrence,
		}, logger),
		Participants: httptransport.NewParticipantHandler(a.participants, logger),
		Health:       httptransport.NewHealthHandler(checks, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})
	return a, nil
}

// openStore selects the backend from the DSN: "memory", a postgres:// URL or
// a SQLite DSN. Migrations are applied before the store is returned.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch {
	case cfg.UsesMemory():
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.New(), nil
	case cfg.UsesPostgres():
		store, err := postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres storage: %w", err)
		}
		return store, nil
	default:
		store, err := sqlite.Open(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		if err := store.Migrate(ctx, logger); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate sqlite storage: %w", err)
		}
		return store, nil
	}
}

func (a *app) seedServices() seed.Services {
	return seed.Services{
		Participants: a.participants,
		Availability: a.availability,
		Meetings:     a.meetings,
	}
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis client", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close storage", "error", err)
		}
	}
}
