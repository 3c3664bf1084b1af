package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/livematch/brackets"
	"github.com/Dosada05/livematch/config"
	"github.com/Dosada05/livematch/db"
	"github.com/Dosada05/livematch/docstore"
	"github.com/Dosada05/livematch/handlers"
	"github.com/Dosada05/livematch/repositories"
	api "github.com/Dosada05/livematch/routes"
	"github.com/Dosada05/livematch/services"
	"github.com/Dosada05/livematch/storage"
	"github.com/go-chi/chi/v5"
	"github.com/itbasis/go-clock"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("docstore_driver", cfg.DocstoreDriver))

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Инициализация загрузчика файлов (Cloudflare R2), если он настроен
	var uploader storage.FileUploader
	var repoOpts []repositories.Option
	if cfg.R2.Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		repoOpts = append(repoOpts, repositories.WithLogoURLResolver(uploader.GetPublicURL))
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("Cloudflare R2 is not configured, logo uploads disabled")
	}

	tournamentRepo := repositories.NewTournamentRepository(store, logger, repoOpts...)
	defer tournamentRepo.Close()
	if err := tournamentRepo.FetchTournaments(ctx); err != nil {
		return err
	}

	tournamentService := services.NewTournamentService(
		tournamentRepo,
		brackets.NewSingleEliminationGenerator(),
		uploader,
		clock.New(),
		logger,
	)
	logger.Info("Services initialized")

	wsHub := brackets.NewHub(logger)

	// Инициализация обработчиков HTTP
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.AllowedOrigins, logger)
	healthHandler := handlers.NewHealthHandler(tournamentService)

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.AllowedOrigins,
	}, tournamentHandler, webSocketHandler, healthHandler)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		logger.Info("WebSocket Hub stopped")
		return nil
	})

	g.Go(func() error {
		return brackets.Bridge(gctx, tournamentRepo, wsHub, logger)
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

// openStore выбирает реализацию хранилища документов по DOCSTORE_DRIVER.
// Возвращаемая функция закрывает хранилище и соединение с базой.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docstore.Store, func(), error) {
	if cfg.DocstoreDriver == config.DriverMemory {
		logger.Warn("using in-memory document store, data is lost on restart")
		store := docstore.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	}

	// Подключение к базе данных
	dbConn, err := db.Connect(ctx, cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database connection established")

	store := docstore.NewPostgresStore(dbConn, cfg.DatabaseURL, logger)
	closeAll := func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close document store", slog.Any("error", err))
		}
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}

	if err := store.EnsureSchema(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to prepare document schema: %w", err)
	}
	return store, closeAll, nil
}
