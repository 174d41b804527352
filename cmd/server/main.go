// Package main provides the Scrawl server binary: HTTP credential
// endpoints plus the websocket game coordinator.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scrawl-game/scrawl/internal/config"
	"github.com/scrawl-game/scrawl/internal/game/room"
	"github.com/scrawl-game/scrawl/internal/game/words"
	"github.com/scrawl-game/scrawl/internal/gateway"
	"github.com/scrawl-game/scrawl/internal/observability"
	"github.com/scrawl-game/scrawl/internal/server"
	"github.com/scrawl-game/scrawl/internal/storage/postgres"
	"github.com/scrawl-game/scrawl/internal/web"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	// Load the word list. An empty list is fatal here, never at runtime.
	bank, err := words.LoadFromFile(cfg.Game.WordsFile)
	if err != nil {
		logger.Fatal("loading word list", zap.Error(err))
	}
	logger.Info("word list loaded",
		zap.String("file", cfg.Game.WordsFile),
		zap.Int("words", bank.Len()),
	)

	// Connect to PostgreSQL for the accounts store.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	userRepo := postgres.NewUserRepository(pool.DB())

	registry := room.NewRegistry(bank, cfg.Game.WinningScore)
	gw := gateway.New(registry, logger, cfg.Game.SendBuffer)
	authH := web.NewAuthHandler(userRepo, logger)
	router := web.NewRouter(authH, gw.HandleWS)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	lc := server.NewLifecycle(logger)

	// Stopped in reverse order, so the pool outlives the HTTP server.
	lc.Add("database", &server.FuncService{
		StartFn: func() error { return pool.Health(ctx, 5*time.Second) },
		StopFn:  pool.Close,
	})

	lc.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("http server listening",
				zap.String("addr", cfg.Server.Addr()),
				zap.Int("winning_score", cfg.Game.WinningScore),
				zap.Duration("startup", time.Since(start)),
			)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			gw.Shutdown()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}
