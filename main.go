package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pmc-figures/config"
	"pmc-figures/providers/pubmed"
	"pmc-figures/services"
	"pmc-figures/storage"
)

// buildRunning verhindert überlappende Dataset-Läufe.
var buildRunning atomic.Bool

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	store := storage.NewDatasetStore(cfg.OutputDir)
	if err := store.EnsureDirs(); err != nil {
		logging.Fatal("Failed to create output directories", zap.Error(err))
	}

	provider := pubmed.NewFetcher(cfg, logging)
	datasetService := services.NewDatasetService(cfg, logging, provider, store)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	setupDatasetRoutes(router, cfg, datasetService, store, logging)

	// Setup Cron
	if cfg.CronSchedule != "" {
		cronScheduler := cron.New()
		cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled dataset build...")
			runBuild(cfg, datasetService, cfg.Query, cfg.LimitResults, cfg.MaxArticles, logging)
		})
		cronScheduler.Start()
		logging.Info("Cron schedule active", zap.String("schedule", cfg.CronSchedule))
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupDatasetRoutes(router *gin.Engine, cfg *config.Config, datasetService *services.DatasetService, store *storage.DatasetStore, log *zap.Logger) {
	rg := router.Group("/datasets")

	// Stößt einen Dataset-Lauf im Hintergrund an.
	rg.POST("/build", func(c *gin.Context) {
		type BuildRequest struct {
			Query        string `json:"query"`
			MaxArticles  int    `json:"max_articles"`
			LimitResults *bool  `json:"limit_results"`
		}

		var req BuildRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Query == "" {
			req.Query = cfg.Query
		}
		if req.MaxArticles <= 0 {
			req.MaxArticles = cfg.MaxArticles
		}
		limitResults := cfg.LimitResults
		if req.LimitResults != nil {
			limitResults = *req.LimitResults
		}

		if !buildRunning.CompareAndSwap(false, true) {
			c.JSON(http.StatusConflict, gin.H{"error": "a build is already running"})
			return
		}

		go func() {
			defer buildRunning.Store(false)
			runBuild(cfg, datasetService, req.Query, limitResults, req.MaxArticles, log)
		}()

		c.JSON(http.StatusAccepted, gin.H{
			"query":      req.Query,
			"output_dir": cfg.OutputDir,
		})
	})

	// Liefert die aktuell geschriebenen Bild/Caption-Paare.
	rg.GET("/pairs", func(c *gin.Context) {
		meta, err := store.ReadMetadata()
		if err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no metadata written yet"})
				return
			}
			log.Error("Failed to read metadata", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "metadata read error"})
			return
		}
		c.JSON(http.StatusOK, meta)
	})
}

func runBuild(cfg *config.Config, datasetService *services.DatasetService, query string, limitResults bool, maxArticles int, log *zap.Logger) {
	dir, err := datasetService.Build(context.Background(), query, limitResults, maxArticles)
	if err != nil {
		log.Error("Dataset build failed", zap.Error(err))
		return
	}
	log.Info("Dataset build completed", zap.String("output_dir", dir))
}
