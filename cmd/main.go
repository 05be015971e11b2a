package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codewidneha/kitchenhub/config"
	"github.com/codewidneha/kitchenhub/database"
	"github.com/codewidneha/kitchenhub/database/dbhelper"
	"github.com/codewidneha/kitchenhub/handlers"
	"github.com/codewidneha/kitchenhub/ingestion"
	"github.com/codewidneha/kitchenhub/query"
	"github.com/codewidneha/kitchenhub/reconciler"
	"github.com/codewidneha/kitchenhub/scraper"
	"github.com/codewidneha/kitchenhub/server"
	"github.com/codewidneha/kitchenhub/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	platforms, err := config.LoadPlatforms(cfg.PlatformsFile)
	if err != nil {
		logrus.Panicf("failed to load platforms config, error: %v", err)
	}

	db, err := database.ConnectAndMigrate(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logrus.Panicf("failed to initialize database, error: %v", err)
	}
	defer db.Close()

	store := dbhelper.NewStore(db)
	recon := reconciler.New(store, platforms.Reconciler, utils.SystemClock)
	adapters := scraper.BuildAdapters(platforms)
	ingestor := ingestion.New(adapters, recon, platforms.Adapter.Timeout())
	engine := query.NewEngine(store, utils.SystemClock)

	svr := server.SetupRoutes(handlers.New(ingestor, engine, utils.SystemClock))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logrus.Printf("listening on %s", cfg.ServerPort)
		if err := svr.Run(cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logrus.Panicf("server stopped, error: %v", err)
		}
	}()

	<-done

	logrus.Info("shutting down...")
	if err := svr.Shutdown(shutdownTimeout); err != nil {
		logrus.WithError(err).Error("failed to shut down server cleanly")
	}
}
