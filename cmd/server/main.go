package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/database"
	"github.com/Tyrowin/roomchat/internal/persist"
	"github.com/Tyrowin/roomchat/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting chat server",
		"port", cfg.Server.Port,
		"messages_backend", cfg.Database.MessagesBackend,
	)

	ctx := context.Background()

	db, err := database.OpenSQLite(cfg.Database.SQLitePath)
	if err != nil {
		logger.Error("failed to open sqlite", "path", cfg.Database.SQLitePath, "error", err)
		os.Exit(1)
	}

	users, err := auth.NewGormUserStore(db)
	if err != nil {
		logger.Error("failed to prepare user store", "error", err)
		os.Exit(1)
	}

	messages, pool, err := openMessageStore(ctx, cfg, db)
	if err != nil {
		logger.Error("failed to prepare message store", "error", err)
		os.Exit(1)
	}

	sink := persist.NewSink(persist.Config{
		QueueSize:    cfg.Sink.QueueSize,
		Workers:      cfg.Sink.Workers,
		WriteTimeout: cfg.Sink.WriteTimeout,
	}, messages, logger.With("component", "sink"))
	if err := sink.Start(ctx); err != nil {
		logger.Error("failed to start persistence sink", "error", err)
		os.Exit(1)
	}

	hub := server.NewHub(sink, logger.With("component", "hub"))
	go hub.Run()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("auth.jwt_secret is not set; using a random secret, tokens will not survive a restart")
	}
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: secret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	accounts := auth.NewService(users, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, logger.With("component", "auth"))

	gw := server.NewGateway(hub, server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		SendBuffer:     cfg.Server.SendBuffer,
		RateLimit: server.RateLimitConfig{
			Burst:          cfg.Server.RateLimit.Burst,
			RefillInterval: cfg.Server.RateLimit.RefillInterval,
		},
		RequireToken: cfg.Auth.RequireToken,
	}, tokens, messages, logger.With("component", "gateway"))

	handler := server.SetupRoutes(gw, auth.NewHandler(accounts, logger.With("component", "auth")))
	httpServer := server.CreateServer(cfg.Server.Port, handler)

	go func() {
		if err := server.StartServer(httpServer, logger); err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"chat-server": func(ctx context.Context) error {
			logger.Info("graceful shutdown initiated")
			var errs []error
			if err := server.ShutdownServer(ctx, httpServer, logger); err != nil {
				errs = append(errs, fmt.Errorf("http server: %w", err))
			}
			if err := hub.Shutdown(10 * time.Second); err != nil {
				errs = append(errs, fmt.Errorf("hub: %w", err))
			}
			if err := sink.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("sink: %w", err))
			}
			if pool != nil {
				pool.Close()
			}
			if err := database.CloseGorm(db); err != nil {
				errs = append(errs, fmt.Errorf("sqlite: %w", err))
			}
			return errors.Join(errs...)
		},
	})

	exitCode := <-wait
	logger.Info("chat server exited", "code", exitCode)
	os.Exit(exitCode)
}

// openMessageStore picks the message backend. The returned pool is nil
// unless messages go to Postgres.
func openMessageStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (persist.HistoryStore, *pgxpool.Pool, error) {
	if cfg.Database.MessagesBackend != config.BackendPostgres {
		store, err := persist.NewGormMessageStore(db)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	pool, err := database.ConnectPostgres(ctx, cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	store, err := persist.NewPgMessageStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random secret: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
