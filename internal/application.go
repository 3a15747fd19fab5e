package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-online/internal/config"
	"github.com/rocketscienceinc/tictactoe-online/internal/repository"
	"github.com/rocketscienceinc/tictactoe-online/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-online/internal/service"
	"github.com/rocketscienceinc/tictactoe-online/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-online/transport/rest"
	"github.com/rocketscienceinc/tictactoe-online/transport/websocket"
)

const shutdownTimeout = 10 * time.Second

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the room server until a signal arrives or the http server fails.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedis(ctx, redisAddrString, conf.Redis.Password, conf.Redis.DB)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	historyDB, err := storage.NewMongo(ctx, conf.Mongo.URI, conf.Mongo.Database)
	if err != nil {
		return fmt.Errorf("could not connect to history storage: %w", err)
	}

	defer func() {
		if err = historyDB.Client().Disconnect(context.Background()); err != nil {
			log.Error("could not close history storage", "error", err)
		}
	}()

	roomRepo := repository.NewRoomRepository(logger, redisStorage, repository.RoomTTL{
		Active:   conf.Room.TTL,
		Finished: conf.Room.FinishedTTL,
	})

	historyRepo := repository.NewHistoryRepository(historyDB)
	if err = historyRepo.EnsureIndexes(ctx, conf.Room.TTL); err != nil {
		return fmt.Errorf("could not prepare history storage: %w", err)
	}

	roomManager := usecase.NewRoomManager(logger, roomRepo, historyRepo, usecase.Options{
		CodeAttempts:  conf.Room.CodeAttempts,
		ValidateMoves: conf.Room.ValidateMoves,
	})

	authService := service.NewAuthService(conf.JWTSecretKey, conf.Room.TTL)

	router := rest.NewRouter(
		rest.NewHandlers(logger, roomManager, authService),
		rest.NewPingHandler(func(ctx context.Context) error {
			return redisStorage.Ping(ctx).Err()
		}),
		websocket.New(logger, roomManager, authService).ServeRoom,
	)

	httpServer := rest.NewServer(logger, conf.HTTPPort, router)

	// the room socket shares the http port
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		return httpServer.Start()
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Application context canceled, shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	if err = group.Wait(); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}
