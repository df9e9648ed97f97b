// Package main provides the entry point for the AudioFolio server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/audiofolio/audiofolio-server/internal/config"
	"github.com/audiofolio/audiofolio-server/internal/errors"
	"github.com/audiofolio/audiofolio-server/internal/logger"
	"github.com/audiofolio/audiofolio-server/internal/media/covers"
	"github.com/audiofolio/audiofolio-server/internal/scanner"
	"github.com/audiofolio/audiofolio-server/internal/store"
	"github.com/audiofolio/audiofolio-server/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "audiofolio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	})

	if len(cfg.Library.Roots) == 0 {
		return errors.Validation("no library roots configured (use -roots or LIBRARY_ROOTS)")
	}

	catalog, err := store.New(filepath.Join(cfg.Data.BasePath, "catalog"), log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := catalog.Close(); err != nil {
			log.Error("failed to close catalog", "error", err)
		}
	}()

	coverStorage, err := covers.NewStorage(cfg.Data.BasePath)
	if err != nil {
		return err
	}
	coverExtractor := covers.NewExtractor(coverStorage, log.Logger)

	analyzer := scanner.NewAnalyzer(log.Logger, cfg.Scan.PreferredLanguages)
	parser := scanner.NewChapterParser(log.Logger, analyzer, catalog, cfg.Scan.Workers)
	walker := scanner.NewWalker(log.Logger)
	media := scanner.NewMediaScanner(log.Logger, walker, parser, catalog, coverExtractor, cfg.Library.Roots)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := media.Scan(ctx); err != nil && !errors.Is(err, errors.ErrScanCanceled) {
		log.Error("initial scan failed", "error", err)
	}

	if !cfg.Watch.Enabled {
		log.Info("watching disabled, exiting after scan")
		return nil
	}

	w, err := watcher.New(log.Logger, watcher.Options{SettleDelay: cfg.Watch.SettleDelay})
	if err != nil {
		return err
	}
	for _, root := range cfg.Library.Roots {
		if err := w.Watch(root.Path); err != nil {
			log.Error("cannot watch root", "path", root.Path, "error", err)
		}
	}

	scheduler := watcher.NewScheduler(log.Logger, w, rescanAdapter{media}, cfg.Watch.MinRescanInterval)

	watchErr := make(chan error, 2)
	go func() { watchErr <- w.Start(ctx) }()
	go func() { watchErr <- scheduler.Run(ctx) }()

	log.Info("watching library", "roots", len(cfg.Library.Roots))
	<-ctx.Done()
	log.Info("shutting down")
	<-watchErr
	return nil
}

// rescanAdapter lets the watcher scheduler trigger scans without depending
// on the scanner's full surface.
type rescanAdapter struct {
	scanner *scanner.MediaScanner
}

func (a rescanAdapter) TriggerScan(ctx context.Context) error {
	_, err := a.scanner.Scan(ctx)
	return err
}
