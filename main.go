package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quillnotes/models"
	"quillnotes/web"

	"github.com/rohanthewiz/logger"
)

func main() {
	// Initialize logger
	logger.SetLogLevel("info")

	cfg, err := models.LoadSyncConfig()
	if err != nil {
		log.Fatal("Failed to load sync config:", err)
	}

	// Durable store: DuckDB primary with a flat-file fallback slot
	if err := models.InitDB("data/quillnotes.ddb"); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer models.CloseDB()

	store := models.NewDualStore(models.NewDuckStore(), models.NewFlatStore("data"))

	bus := models.NewBus()
	monitor := models.NewNetMonitor(models.SystemOnline())
	remote := models.NewHTTPRemoteStore(cfg.APIBaseURL)

	engine, err := models.NewSyncEngine(cfg, store, remote, monitor, bus)
	if err != nil {
		log.Fatal("Failed to create sync engine:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The state must be listening before the engine's first sweep can
	// publish noteSynced events
	state := models.NewNoteState(store, remote, monitor, bus)
	defer state.Close()
	if err := state.Load(ctx); err != nil {
		// Server unreachable at boot is normal for an offline-first app
		logger.LogErr(err, "initial note load incomplete, starting with local notes")
	}

	engine.Start(ctx)
	defer engine.Stop()
	engine.RegisterBackgroundSync(nil)

	// Shut down cleanly on SIGINT/SIGTERM so pending state is flushed
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Shutting down", "signal", sig.String())
		engine.Stop()
		state.Close()
		models.CloseDB()
		os.Exit(0)
	}()

	srv := web.NewServer()
	logger.Info("Starting QuillNotes on port 8000")
	log.Fatal(web.Run(srv))
}
