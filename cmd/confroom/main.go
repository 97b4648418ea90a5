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

	httpapi "github.com/immxrtalbeast/confroom/internal/api/http"
	"github.com/immxrtalbeast/confroom/internal/auth"
	"github.com/immxrtalbeast/confroom/internal/config"
	"github.com/immxrtalbeast/confroom/internal/repository"
	"github.com/immxrtalbeast/confroom/internal/service"
	"github.com/immxrtalbeast/confroom/lib/logger/sl"
	"github.com/immxrtalbeast/confroom/lib/logger/slogpretty"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	jwt, err := auth.NewJWTProvider(cfg.Auth.Secret)
	if err != nil {
		log.Error("failed to create token provider", sl.Err(err))
		os.Exit(1)
	}

	var identities service.IdentityProvider = jwt
	if cfg.Auth.AllowGuests {
		identities = auth.NewGuestProvider(jwt)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewInMemoryUserRepository()
	userService := service.NewUserService(userRepo, jwt, cfg.Auth.TokenTTL, log)

	roomService := service.NewRoomService(log)
	roomsDone := make(chan struct{})
	go func() {
		roomService.Run(ctx)
		close(roomsDone)
	}()

	roomController := httpapi.NewRoomController(roomService, identities, cfg, log)
	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		log.Error("failed to create uploads directory", slog.String("dir", cfg.Uploads.Dir), sl.Err(err))
		os.Exit(1)
	}
	userController := httpapi.NewUserController(userService, cfg.Uploads)

	router := httpapi.SetupRouter(cfg.HTTP.AllowedOrigins, identities, roomController, userController)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("starting application",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("env", cfg.Env),
			slog.Bool("guests", cfg.Auth.AllowGuests),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errChan:
		log.Error("http server stopped", sl.Err(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; they end
	// when the room service stops.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down http server", sl.Err(err))
	}
	<-roomsDone

	log.Info("application stopped")
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
