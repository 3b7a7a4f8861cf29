package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/scraper"
)

var replayMonth string

var replayCmd = &cobra.Command{
	Use:   "replay <snapshot.html>",
	Short: "Re-runs price extraction against a saved date picker snapshot.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var months []models.MonthWindow
		if replayMonth != "" {
			m, err := scraper.ParseMonth(replayMonth)
			if err != nil {
				return err
			}
			months = append(months, m)
		} else {
			months, err = scraper.SnapshotMonths(bytes.NewReader(data))
			if err != nil {
				return err
			}
			if len(months) == 0 {
				return fmt.Errorf("%s: no month blocks found, pass --month", args[0])
			}
		}

		prices := make(models.PriceMap)
		for _, m := range months {
			found, err := scraper.ParseSnapshot(bytes.NewReader(data), m)
			if err != nil {
				return err
			}
			logger.Info("month replayed", "month", m.String(), "prices", len(found))
			prices.Merge(found)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(prices)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayMonth, "month", "", `month to extract ("2026-04" or "avril 2026"), default every rendered month`)
	rootCmd.AddCommand(replayCmd)
}
