package main

import (
	"context"
	"log"
	"os"
	"time"

	"docentgo/internal/api"
	"docentgo/internal/config"
	"docentgo/internal/identity"
	"docentgo/internal/logging"
	"docentgo/internal/pipeline"
	"docentgo/internal/prefs"
	"docentgo/internal/service/crawl"
	"docentgo/internal/service/extract"
	"docentgo/internal/service/inference"
	"docentgo/internal/state"
	"docentgo/internal/status"
	"docentgo/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("DOCENT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(cfg.BasicConfig.LogLevel, os.Getenv("DOCENT_PRETTY_LOG") != "")

	dbType := os.Getenv("DOCENT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}

	// A broken database degrades the shell to memory-only operation
	// instead of refusing to start. Conversations simply stop surviving
	// restarts until the store comes back.
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logger.Error().Err(err).Str("driver", dbType).Msg("open database, running memory-only")
		db = nil
	} else {
		defer db.Close()
		if err := storage.Migrate(db, dbType); err != nil {
			logger.Error().Err(err).Msg("migrate database, running memory-only")
			db.Close()
			db = nil
		}
	}
	store := storage.NewStore(db)

	prefStore := prefs.NewStore(cfg.BasicConfig.PreferencesPath)
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	if cfg.BasicConfig.WatchPrefs {
		go func() {
			if err := prefs.Watch(rootCtx, prefStore); err != nil {
				logger.Warn().Err(err).Msg("preferences watcher stopped")
			}
		}()
	}

	app := state.NewAppState(store)

	ident := identity.NewProvider(cfg.BasicConfig.TokenPath)
	ident.Resolve()

	var extractor extract.Extractor
	if cfg.Services.ExtractURL != "" {
		extractor = extract.NewRemote(cfg.Services.ExtractURL)
	} else {
		local, err := extract.NewLocal(cfg.BasicConfig.UploadsDir)
		if err != nil {
			log.Fatalf("init document extractor: %v", err)
		}
		local.StartSweeper(rootCtx, 10*time.Minute, 30*time.Minute)
		extractor = local
	}

	var crawler crawl.Crawler
	if cfg.Services.CrawlURL != "" {
		crawler = crawl.NewClient(cfg.Services.CrawlURL)
	}

	var engine inference.Engine
	if cfg.Services.ChatURL != "" {
		engine = inference.NewRemote(cfg.Services.ChatURL)
	} else {
		provider := os.Getenv("DOCENT_PROVIDER")
		if provider == "" {
			provider = "openai"
		}
		engine, err = inference.NewEinoEngine(rootCtx, provider, cfg)
		if err != nil {
			log.Fatalf("init inference engine: %v", err)
		}
	}

	reporter := status.NewReporter()
	orch := pipeline.NewOrchestrator(store, prefStore, app, reporter, extractor, crawler, engine, logger)
	handlers := api.NewHandler(store, prefStore, app, reporter, orch, ident, logger)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	logger.Info().Str("addr", addr).Bool("durable", store.Available()).Msg("shell listening")

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
