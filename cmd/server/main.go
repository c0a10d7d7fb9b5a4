package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "retail-pos/internal/adapters/web"
	"retail-pos/internal/app"
	"retail-pos/internal/config"
	"retail-pos/internal/db"
	"retail-pos/internal/logging"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	svc := app.New(pool, cfg.Location, log)

	var sessions webAdapter.SessionStore = webAdapter.NoopSessionStore{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		sessions = webAdapter.NewRedisSessionStore(rdb)
		log.WithField("addr", cfg.Redis.Addr).Info("session revocation backed by redis")
	} else {
		log.Warn("REDIS_ADDR not set: logout clears the cookie but tokens stay valid until expiry")
	}

	handler := webAdapter.NewHandler(ctx, svc, webAdapter.Options{
		JWTSecret:          cfg.Auth.JWTSecret,
		SessionTTL:         cfg.Auth.SessionTTL,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		RequestTimeout:     cfg.Server.RequestTimeout,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
		Development:        cfg.IsDevelopment(),
		Sessions:           sessions,
		Logger:             log,
		Location:           cfg.Location,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown")
		}
	}()

	log.WithFields(logrus.Fields{"port": cfg.Server.Port, "env": cfg.Server.AppEnv}).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
	log.Info("server stopped")
}
