package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/jobs"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/services"
)

var workerCmd = &cobra.Command{
	Use:    "worker <origin> <destination> <start> <end> <result_file> <job_id>",
	Short:  "Runs a single scrape and writes its result file. Spawned by the scheduler.",
	Hidden: true,
	Args:   cobra.ExactArgs(jobs.WorkerArgs),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(jobs.RunWorker(cmd.Context(), args, services.ScrapeWithBrowser(cfg, logger), logger))
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
