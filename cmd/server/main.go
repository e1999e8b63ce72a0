package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/devaloi/socialchat/internal/auth"
	"github.com/devaloi/socialchat/internal/config"
	"github.com/devaloi/socialchat/internal/conversation"
	"github.com/devaloi/socialchat/internal/handler"
	"github.com/devaloi/socialchat/internal/hub"
	"github.com/devaloi/socialchat/internal/logging"
	"github.com/devaloi/socialchat/internal/presence"
	"github.com/devaloi/socialchat/internal/router"
	"github.com/devaloi/socialchat/internal/session"
	"github.com/devaloi/socialchat/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.Production())
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, cfg.StoreDriver, cfg.DBPath, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer s.Close()

	var mirror presence.Mirror = presence.NopMirror{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("connect redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		mirror = presence.NewRedisMirror(rdb, "socialchat", cfg.PresenceTTL)
		log.Info("presence mirror enabled", zap.String("addr", cfg.RedisAddr))
	}

	reg := presence.NewRegistry(log)
	tracker := session.NewTracker()
	rooms := hub.New(cfg.MaxRooms, log)
	rt := router.New(s, reg, rooms, router.Options{
		StoreTimeout:         cfg.StoreTimeout,
		PersistGroupMessages: cfg.PersistGroupMessages,
	}, log)

	deps := &session.Deps{
		Verifier:   auth.NewJWTVerifier(cfg.JWTSecret),
		Presence:   reg,
		Mirror:     mirror,
		Hub:        rooms,
		Router:     rt,
		Log:        log,
		SendBuffer: cfg.SendBuffer,
		Tracker:    tracker,
	}
	svc := conversation.NewService(s, cfg.StoreTimeout, cfg.MaxHistory, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(deps, svc, cfg.Production()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("socialchat listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	// Upgraded connections are hijacked and outlive srv.Shutdown.
	log.Info("closing sessions", zap.Int("sessions", tracker.CloseAll()))
	reg.Shutdown()
	rooms.Shutdown()
}
