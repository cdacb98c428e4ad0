package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/synthpanel/internal/application"
	appagg "github.com/bryanwahyu/synthpanel/internal/application/aggregate"
	appruns "github.com/bryanwahyu/synthpanel/internal/application/runs"
	appvariants "github.com/bryanwahyu/synthpanel/internal/application/variants"
	"github.com/bryanwahyu/synthpanel/internal/config"
	"github.com/bryanwahyu/synthpanel/internal/domain/aggregate"
	domai "github.com/bryanwahyu/synthpanel/internal/domain/ai"
	"github.com/bryanwahyu/synthpanel/internal/domain/runfailures"
	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/domain/variants"
	"github.com/bryanwahyu/synthpanel/internal/infra/ai/gemini"
	"github.com/bryanwahyu/synthpanel/internal/infra/ai/openai"
	"github.com/bryanwahyu/synthpanel/internal/infra/ai/panel"
	"github.com/bryanwahyu/synthpanel/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/synthpanel/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/synthpanel/internal/infra/db/postgres"
	"github.com/bryanwahyu/synthpanel/internal/infra/httpserver"
	"github.com/bryanwahyu/synthpanel/internal/infra/progress"
	"github.com/bryanwahyu/synthpanel/internal/infra/storage"
	"github.com/bryanwahyu/synthpanel/internal/logger"
	"github.com/bryanwahyu/synthpanel/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("server stopped", "error", err)
		lg.Sync()
		os.Exit(1)
	}
}

// stores groups the record store repositories of one driver.
type stores struct {
	personas   variants.PersonaRepository
	variants   variants.Repository
	runs       runs.Repository
	responses  runs.ResponseRepository
	aggregates aggregate.Repository
	failures   runfailures.Repository
	db         *sql.DB
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &stores{
			personas:   mysqlp.NewPersonaRepository(db),
			variants:   mysqlp.NewVariantRepository(db),
			runs:       mysqlp.NewRunRepository(db),
			responses:  mysqlp.NewResponseRepository(db),
			aggregates: mysqlp.NewAggregateRepository(db),
			failures:   mysqlp.NewRunFailureRepository(db),
			db:         db,
		}, nil
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := pgp.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &stores{
			personas:   pgp.NewPersonaRepository(db),
			variants:   pgp.NewVariantRepository(db),
			runs:       pgp.NewRunRepository(db),
			responses:  pgp.NewResponseRepository(db),
			aggregates: pgp.NewAggregateRepository(db),
			failures:   pgp.NewRunFailureRepository(db),
			db:         db,
		}, nil
	default:
		m := memory.NewStore()
		return &stores{
			personas:   m.Personas(),
			variants:   m.Variants(),
			runs:       m.Runs(),
			responses:  m.Responses(),
			aggregates: m.Aggregates(),
			failures:   m.Failures(),
		}, nil
	}
}

func newAIClient(ctx context.Context, cfg *config.Config) (domai.Client, error) {
	if cfg.AI.Provider == "gemini" {
		return gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens)
	}
	return openai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens), nil
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	checks := map[string]middleware.HealthChecker{}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
		checks["database"] = &middleware.DatabaseHealthChecker{DB: st.db}
	}

	// progress channel: redis when enabled so several instances can observe a run
	var prog runs.ProgressStore = progress.NewMemory()
	if cfg.Redis.Enabled {
		rp, err := progress.NewRedis(ctx, progress.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.RedisTTL(),
		}, lg)
		if err != nil {
			return fmt.Errorf("redis init: %w", err)
		}
		defer rp.Close()
		prog = rp
		checks["redis"] = middleware.CheckFunc(rp.Ping)
	}

	var attachments runs.AttachmentStore = storage.NewMemory()
	if cfg.Minio.Enabled {
		ms, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		attachments = ms
		checks["minio"] = middleware.CheckFunc(ms.Ping)
	}

	client, err := newAIClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ai client init: %w", err)
	}
	if !client.Configured() {
		lg.Warn("ai provider has no api key, generation calls will fail", "provider", cfg.AI.Provider)
	}
	gen := panel.New(client, lg)
	gen.Timeout = time.Duration(cfg.AI.TimeoutSecs) * time.Second

	clock := application.SystemClock{}
	sup := application.NewSupervisor(lg.With("component", "supervisor"))
	metrics := middleware.NewMetrics()
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	if err := sup.Go("ratelimit-sweep", limiter.Run); err != nil {
		return err
	}

	engine := &appagg.Engine{
		Responses:         st.responses,
		Variants:          st.variants,
		Repo:              st.aggregates,
		Failures:          st.failures,
		Clock:             clock,
		Log:               lg.With("component", "aggregate"),
		SamplingThreshold: cfg.Panel.SamplingThreshold,
		TextCap:           cfg.Panel.ResponseTextCap,
	}
	if cfg.Panel.Themes == "remote" {
		engine.Summarizer = gen
	}

	runsSvc := &appruns.Service{
		Repo:        st.runs,
		Responses:   st.responses,
		Variants:    st.variants,
		Personas:    st.personas,
		Generator:   gen,
		Progress:    prog,
		Attachments: attachments,
		Failures:    st.failures,
		Aggregator:  engine,
		Tasks:       sup,
		Clock:       clock,
		Log:         lg.With("component", "runs"),
		Metrics:     metrics,
		BatchSize:   cfg.Panel.BatchSize,
		BatchDelay:  cfg.BatchDelay(),
	}
	variantsSvc := &appvariants.Service{
		Personas:    st.personas,
		Repo:        st.variants,
		Generator:   gen,
		Clock:       clock,
		Log:         lg.With("component", "variants"),
		MaxVariants: cfg.Panel.MaxVariants,
	}

	handler := httpserver.NewRouter(httpserver.Options{
		Variants:     variantsSvc,
		Runs:         runsSvc,
		Progress:     prog,
		PollInterval: cfg.PollInterval(),
		Log:          lg.With("component", "http"),
		APIKeys:      cfg.Auth.APIKeys,
		RateLimiter:  limiter,
		Metrics:      metrics,
		HealthChecks: checks,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: progress streams stay open for the whole run
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info("server listening", "addr", addr, "driver", cfg.Database.Driver, "provider", cfg.AI.Provider, "model", client.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		_ = sup.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}
	lg.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		lg.Warn("http shutdown error", "error", err)
	}
	// running orchestrators see a cancelled context and record the run as failed
	if err := sup.Shutdown(ctx2); err != nil {
		lg.Warn("background tasks did not finish", "error", err)
	}
	return nil
}
