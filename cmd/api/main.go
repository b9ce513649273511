package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"

	"racer-platform/internal/checkout"
	"racer-platform/internal/config"
	"racer-platform/internal/engagement"
	"racer-platform/internal/fanstatus"
	"racer-platform/internal/gateway"
	"racer-platform/internal/logger"
	"racer-platform/internal/metrics"
	"racer-platform/internal/pending"
	"racer-platform/internal/router"
	"racer-platform/internal/store"
	ws "racer-platform/internal/websocket"
)

const sweepInterval = 5 * time.Minute

func main() {
	// Load Configuration
	cfg, err := config.Load(".")
	if err != nil {
		bootLog := logger.New("production", "info")
		bootLog.Fatal().Err(err).Msg("cannot load config")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Msg("Starting racer support platform server...")

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the Database
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to database")
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	log.Info().Msg("Successfully connected to PostgreSQL")

	st := store.New(db)
	rec := metrics.New()

	// A missing processor key disables monetization instead of failing startup.
	var processor gateway.Processor
	if cfg.MonetizationEnabled() {
		mt, err := gateway.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransEnv, logger.Component(log, "midtrans"))
		if err != nil {
			log.Fatal().Err(err).Msg("cannot configure payment processor")
		}
		processor = mt
	} else {
		log.Warn().Msg("MIDTRANS_SERVER_KEY not set, monetization disabled")
	}

	var pend pending.Store
	if cfg.RedisURL != "" {
		rs, err := pending.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot connect to redis")
		}
		defer rs.Close()
		pend = rs
	} else {
		mem := pending.NewMemoryStore()
		go sweep(ctx, mem)
		pend = mem
	}

	hub := ws.NewHub(logger.Component(log, "hub"))
	go hub.Run(ctx)

	fans := fanstatus.New(st, cfg.SuperfanThresholdCents, logger.Component(log, "fanstatus"), rec)
	orch := checkout.New(st, processor, pend, fans, hub, rec, logger.Component(log, "checkout"), checkout.Config{
		BaseURL:        cfg.AppBaseURL,
		PendingTTL:     cfg.PendingTTL,
		GatewayTimeout: cfg.GatewayTimeout,
	})
	views := engagement.NewRecorder(st, logger.Component(log, "engagement"), rec)

	r := router.New(router.Deps{
		Store:          st,
		Checkout:       orch,
		Fans:           fans,
		Views:          views,
		Gate:           engagement.NewGate(cfg.ViewMinDwell),
		Hub:            hub,
		Metrics:        rec,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Bool("monetization", orch.Enabled()).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("could not start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("Server shut down gracefully")
}

func sweep(ctx context.Context, mem *pending.MemoryStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mem.Sweep()
		}
	}
}
