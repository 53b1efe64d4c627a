package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"

	"github.com/yurifrl/invoicefetch/pkg/config"
)

const version = "0.1.0"

var errInvoicesFailed = errors.New("some invoices could not be downloaded")

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "invoicefetch",
	Short:         "Download and organize invoices from Amazon Business",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is ~/.invoice-fetcher/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("download-dir", "", "Directory invoices are filed under")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(listCmd)
}

// loadConfig builds the configuration for cmd and a logger matching it. The
// returned func closes the log file, if any.
func loadConfig(cmd *cobra.Command) (*config.Config, *log.Logger, func(), error) {
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

func newLogger(cfg config.Logging, stderr io.Writer) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: logging.level: %w", config.ErrConfiguration, err)
	}
	if debug {
		level = log.DebugLevel
	}

	w := stderr
	closeLog := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closeLog = func() { _ = f.Close() }
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: true,
		Prefix:          "invoicefetch",
		Level:           level,
	})
	return logger, closeLog, nil
}

func main() {
	// A missing .env is fine.
	_ = gotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errInvoicesFailed) {
			printError(os.Stderr, describe(err))
		}
		os.Exit(1)
	}
}
