package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"ai-restaurant-analysis/internal/api"
	"ai-restaurant-analysis/internal/assembler"
	"ai-restaurant-analysis/internal/clova"
	"ai-restaurant-analysis/internal/infrastructure/repository"
	"ai-restaurant-analysis/internal/pipeline"
	"ai-restaurant-analysis/internal/places"
	"ai-restaurant-analysis/internal/preprocess"
	"ai-restaurant-analysis/internal/prompts"
	"ai-restaurant-analysis/internal/scorer"
	"ai-restaurant-analysis/internal/selector"
	"ai-restaurant-analysis/pkg/config"
	"ai-restaurant-analysis/pkg/database"
	"ai-restaurant-analysis/pkg/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	})
	boot := log.WithComponent("main")

	db, err := database.NewWithConfig(cfg)
	if err != nil {
		boot.Error("open database", logging.Err(err))
		os.Exit(1)
	}
	defer db.Close()
	repo := repository.NewSQLRepository(db)

	pm, err := prompts.NewManager()
	if err != nil {
		boot.Error("load prompt templates", logging.Err(err))
		os.Exit(1)
	}

	search, err := places.NewFromConfig(cfg, log)
	if err != nil {
		boot.Error("init places client", logging.Err(err))
		os.Exit(1)
	}
	ai := clova.New(cfg, log)

	engine := pipeline.NewEngine(
		pipeline.NewTracker(repo, log),
		preprocess.New(ai, pm, log),
		search,
		scorer.NewReviewScorer(ai, pm, cfg.ScorerConcurrency, cfg.TopReviewsToKeep, log),
		selector.New(ai, pm, cfg.TopPlacesToReturn, log),
		assembler.New(repo, search, log),
		pipeline.EngineConfig{
			RadiusMeters: cfg.SearchRadiusMeters,
			MaxResults:   cfg.MaxSearchResults,
		},
		log,
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.Router(engine, repo, db, ai, pm, log),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		boot.Info("shutdown signal received")
		cancel()
	}()

	go func() {
		boot.Info("server starting", logging.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			boot.Error("http server", logging.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		boot.Error("http server shutdown", logging.Err(err))
	}
	boot.Info("shutdown complete")
}
