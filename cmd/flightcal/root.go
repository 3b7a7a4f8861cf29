package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/config"
)

var (
	configPath string
	cfg        config.Config
	logger     = slog.Default()
	logFile    *os.File
)

var rootCmd = &cobra.Command{
	Use:           "flightcal",
	Short:         "flightcal scrapes the Google Flights price calendar.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		// Worker output is captured by the scheduler, so it stays plain.
		return setupLogger(cmd.Name() == "worker")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.json5 or .yaml)")
}

func execute() {
	if err := rootCmd.ExecuteContext(signalContext()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(plain bool) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(os.Stderr, f)
		plain = true
	}

	logger = slog.New(tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    plain,
	}))
	slog.SetDefault(logger)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	return ctx
}
