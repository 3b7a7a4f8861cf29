package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/api"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/jobs"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/storage"
)

const (
	cleanupInterval  = time.Hour
	productionMaxAge = 7 * 24 * time.Hour
	shutdownTimeout  = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the calendar price API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newScheduler re-executes this binary as the worker process.
func newScheduler() (*jobs.Scheduler, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	command := []string{exe}
	if configPath != "" {
		command = append(command, "--config", configPath)
	}
	command = append(command, "worker")
	return jobs.NewScheduler(jobs.Options{
		Command:         command,
		TempDir:         cfg.TempDir,
		RequestsPerHour: cfg.RequestsPerHour,
		Logger:          logger.With("component", "scheduler"),
	})
}

func serve(ctx context.Context) error {
	logger.Info("starting", "name", api.ProjectName, "version", api.Version,
		"environment", cfg.Environment, "addr", cfg.Addr(), "driver", cfg.DBDriver)

	store, err := storage.Open(ctx, cfg, logger.With("component", "storage"))
	if err != nil {
		return err
	}
	defer store.Close()
	cache := storage.NewMemoCache(store, cfg.MemoCacheSize, cfg.CacheTTL)

	if cfg.IsProduction() {
		deleted, err := cache.ClearOlderThan(ctx, productionMaxAge)
		if err != nil {
			logger.Warn("startup cache cleanup failed", "err", err)
		} else {
			logger.Info("startup cache cleanup", "deleted", deleted)
		}
	}

	scheduler, err := newScheduler()
	if err != nil {
		return err
	}
	defer scheduler.Shutdown()

	svc := newCalendarService(cache, scheduler)
	server := api.NewServer(svc, cache, scheduler, cfg, logger.With("component", "api"))
	httpServer := server.NewHTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := scheduler.CleanupOld(cfg.JobMaxAge); n > 0 {
					logger.Info("stale jobs cleaned", "count", n)
				}
			}
		}
	})
	return g.Wait()
}
