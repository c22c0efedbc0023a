package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/immxrtalbeast/meshcall/internal/api/http"
	"github.com/immxrtalbeast/meshcall/internal/config"
	"github.com/immxrtalbeast/meshcall/internal/identity"
	"github.com/immxrtalbeast/meshcall/internal/presence"
	"github.com/immxrtalbeast/meshcall/internal/repository"
	"github.com/immxrtalbeast/meshcall/internal/service"
	"github.com/immxrtalbeast/meshcall/lib/logger/sl"
	"github.com/immxrtalbeast/meshcall/lib/logger/slogpretty"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := setupPresence(ctx, cfg.Redis, log)

	roomRepo := repository.NewInMemoryRoomRepository()
	allocator := identity.NewAllocator(cfg.Room.Identities)

	registry := service.NewRoomRegistry(roomRepo, allocator, publisher, cfg.Room, log)
	relay := service.NewSignalingRelay(registry, log)

	roomController := httpapi.NewRoomController(registry, relay, cfg.HTTP.AllowedOrigins, log)
	webrtcController := httpapi.NewWebRTCController(cfg.WebRTC.STUNServers)
	router := httpapi.SetupRouter(roomController, webrtcController, cfg.HTTP.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", sl.Err(err))
		}
	}()

	log.Info("starting application",
		slog.String("addr", cfg.HTTP.Address),
		slog.String("env", cfg.Env),
		slog.Int("video_slots", cfg.Room.VideoSlots),
		slog.Int("identities", allocator.Size()),
		slog.Int("stun_servers", len(cfg.WebRTC.STUNServers)),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
	log.Info("application stopped")
}

// setupPresence starts the Redis mirror when an address is configured.
func setupPresence(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) presence.Publisher {
	if cfg.Address == "" {
		return presence.Nop{}
	}

	client, err := presence.Connect(ctx, cfg)
	if err != nil {
		log.Warn("presence mirror disabled", sl.Err(err))
		return presence.Nop{}
	}
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	mirror := presence.NewRedisMirror(presence.NewRedisStore(client), cfg.TTL, log)
	go mirror.Run(ctx)

	log.Info("presence mirror enabled", slog.String("redis", cfg.Address))
	return mirror
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
