package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/storage"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects and prunes the price cache.",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints cache totals and the latest scrape logs as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var clearDays int

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deletes cached prices and scrape logs older than --days.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if clearDays < 1 {
			return fmt.Errorf("--days must be at least 1, got %d", clearDays)
		}
		store, err := storage.Open(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.ClearOlderThan(cmd.Context(), time.Duration(clearDays)*24*time.Hour)
		if err != nil {
			return err
		}
		logger.Info("cache cleared", "days", clearDays, "deleted", deleted)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().IntVar(&clearDays, "days", 7, "age in days above which entries are deleted")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
