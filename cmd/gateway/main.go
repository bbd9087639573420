package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nirasova/ether-gateway/common/audit"
	"github.com/nirasova/ether-gateway/common/logging"
	natsclient "github.com/nirasova/ether-gateway/common/messaging/nats"
	"github.com/nirasova/ether-gateway/internal/config"
	"github.com/nirasova/ether-gateway/internal/egress"
	"github.com/nirasova/ether-gateway/internal/gate"
	"github.com/nirasova/ether-gateway/internal/handlers"
	"github.com/nirasova/ether-gateway/internal/ratelimit"
	"github.com/nirasova/ether-gateway/internal/replay"
	"github.com/nirasova/ether-gateway/internal/server"
	"github.com/nirasova/ether-gateway/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ether-gateway"))
	logging.SetDefault(logger)

	slog.Info("Starting Ether gateway",
		slog.Int("port", cfg.Server.Port),
		slog.String("environment", cfg.Environment),
		slog.String("version", cfg.Version),
		slog.String("log_level", cfg.Logging.Level),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}
	if cfg.Gate.InternalToken == "" {
		log.Println("WARNING: gate.internal_token is not set; all sealed paths will be rejected (fail closed)")
	}

	// Rate limiter: redis when available, in-memory otherwise
	var limiter ratelimit.Limiter
	limiterBackend := "memory"
	switch {
	case !cfg.Ingest.RateLimitEnabled:
		limiter = ratelimit.NoopLimiter{}
		limiterBackend = "disabled"
		log.Println("Rate limiting disabled in configuration")
	case cfg.Redis.Enabled:
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.Redis.URL, cfg.Ingest.RateLimitRPM, time.Minute)
		if err != nil {
			log.Printf("WARNING: Failed to initialize Redis rate limiter: %v", err)
			log.Println("Falling back to in-memory rate limiting")
			limiter = ratelimit.NewMemoryLimiter(cfg.Ingest.RateLimitRPM, time.Minute)
		} else {
			limiter = redisLimiter
			limiterBackend = "redis"
			log.Printf("Redis rate limiting enabled: %d requests per minute per source", cfg.Ingest.RateLimitRPM)
		}
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.Ingest.RateLimitRPM, time.Minute)
		log.Printf("In-memory rate limiting enabled: %d requests per minute per source", cfg.Ingest.RateLimitRPM)
	}
	defer limiter.Close()

	// Replay cache: same backend split as the limiter
	var cache replay.Cache
	cacheBackend := "memory"
	if cfg.Redis.Enabled {
		redisCache, err := replay.NewRedisCache(cfg.Redis.URL, cfg.Ingest.ReplayTTL)
		if err != nil {
			log.Printf("WARNING: Failed to initialize Redis replay cache: %v", err)
			log.Println("Falling back to in-memory replay cache")
			cache = replay.NewMemoryCache(cfg.Ingest.ReplayTTL, cfg.Ingest.ReplaySweepThreshold)
		} else {
			cache = redisCache
			cacheBackend = "redis"
			log.Printf("Redis replay cache enabled (TTL: %s)", cfg.Ingest.ReplayTTL)
		}
	} else {
		cache = replay.NewMemoryCache(cfg.Ingest.ReplayTTL, cfg.Ingest.ReplaySweepThreshold)
		log.Printf("In-memory replay cache enabled (TTL: %s)", cfg.Ingest.ReplayTTL)
	}
	defer cache.Close()

	// Egress publisher: NATS when configured, log-only otherwise
	var publisher egress.Publisher
	if cfg.NATS.Enabled {
		nc, err := natsclient.NewClient(natsclient.Config{
			URL:           cfg.NATS.URL,
			Name:          "ether-gateway",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer nc.Close()
		publisher = nc
		log.Printf("NATS egress enabled (url: %s, subject prefix: %s)", cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	} else {
		publisher = &egress.LogPublisher{Logger: logger}
		log.Println("NATS disabled - egress events will be logged only")
	}

	// Routing table
	signer := audit.NewEventSigner(cfg.Audit.SigningKey)
	router := egress.NewRouter()
	egress.RegisterRoutes(router, egress.Handlers{
		Audit:       egress.NewAuditHandler(signer, logger),
		Exclusivity: egress.NewQueueHandler(publisher, cfg.NATS.SubjectPrefix+".exclusivity"),
		Sova:        egress.NewQueueHandler(publisher, cfg.NATS.SubjectPrefix+".sova"),
	})

	ingestService := service.NewIngestService(router, logger)

	handler := handlers.NewGatewayHandler(ingestService, limiter, cache, handlers.Config{
		MaxBodyBytes:     cfg.Ingest.MaxBodyBytes,
		Version:          cfg.Version,
		Environment:      cfg.Environment,
		RateLimitBackend: limiterBackend,
		ReplayBackend:    cacheBackend,
	}, logger)

	g := gate.New(gate.Config{
		Secret:         cfg.Gate.InternalToken,
		AllowedSources: cfg.Gate.AllowedSources,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler, g, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Ether gateway listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
