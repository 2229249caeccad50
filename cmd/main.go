package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"lyvo-backend/internal/api"
	"lyvo-backend/internal/auth"
	"lyvo-backend/internal/catalog"
	"lyvo-backend/internal/config"
	"lyvo-backend/internal/domain"
	"lyvo-backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, relying on system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("error loading configuration")
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.WithFields(logrus.Fields{
		"app_env": cfg.AppEnv,
		"backend": cfg.Store.Backend,
	}).Info("starting service")

	productStore, pinger, closer := buildStore(cfg, logger)
	if closer != nil {
		defer closer.Close()
	}

	handler := api.NewHTTPHandler(
		catalog.NewService(productStore),
		auth.NewVerifier(cfg.BotToken),
		pinger,
		logger,
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(corsHandler(cfg.WebAppURL))
	router.Use(api.NewRateLimiter(rate.Limit(20), 40).Middleware)
	handler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      router,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.WithField("port", cfg.HttpServer.Port).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server error")
		}
	}()

	waitForShutdown(logger, httpServer)
}

// buildStore wires the configured catalog backend. The memory backend starts
// with an empty catalog when its snapshot cannot be loaded; that is loud in
// the logs but not fatal.
func buildStore(cfg *config.Config, logger *logrus.Logger) (store.ProductStore, api.Pinger, io.Closer) {
	if cfg.Store.Backend == "memory" {
		products, err := loadSnapshot(cfg, logger)
		if err != nil {
			logger.WithError(err).Error("catalog snapshot load failed, starting with an empty catalog")
		}
		return store.NewMemoryStore(products, logger), nil, nil
	}

	db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database connection")
	}
	db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Store.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Store.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Fatal("failed to ping database")
	}
	logger.Info("database connection established")

	pg := store.NewPostgresStore(db, logger)
	return pg, pg, pg
}

func loadSnapshot(cfg *config.Config, logger *logrus.Logger) ([]domain.Product, error) {
	if cfg.Store.Snapshot == "" {
		logger.Warn("no CATALOG_SNAPSHOT configured, memory catalog starts empty")
		return nil, nil
	}
	products, err := store.LoadSnapshot(cfg.Store.Snapshot)
	if err != nil {
		return nil, err
	}
	logger.WithField("count", len(products)).Info("catalog snapshot loaded")
	return products, nil
}

// corsHandler allows the configured front-end origin plus any Vercel preview
// deployment of it.
func corsHandler(webAppURL string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == webAppURL {
				return true
			}
			return strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, ".vercel.app")
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}

func waitForShutdown(logger *logrus.Logger, httpServer *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	received := <-sigChan
	logger.WithField("signal", received.String()).Info("starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server graceful shutdown failed")
		return
	}
	logger.Info("HTTP server gracefully shut down")
}
