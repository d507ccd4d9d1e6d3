package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	rootConfig string
	logLevel   string
	logFormat  string
	verbose    bool
)

var rootCmd = cobra.Command{
	Use:          "doctemplate",
	Short:        "Render document templates against YAML, JSON and Starlark data",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			os.Setenv("DOCTEMPLATE_VERBOSE", "1")
			if !cmd.Flags().Changed("log-level") {
				logLevel = "debug"
			}
		}
		logger, err := newLogger(os.Stderr, logLevel, logFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfig, "config", defaultConfigPath, "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	renderCmd.Flags().StringArrayVarP(&renderFlags.dataFiles, "data", "d", nil, "YAML or JSON data file; repeatable, later files win")
	renderCmd.Flags().StringArrayVar(&renderFlags.sets, "set", nil, "Set a variable as KEY=VALUE; repeating a key builds a list")
	renderCmd.Flags().StringVar(&renderFlags.script, "script", "", "Starlark script whose globals extend the data context")
	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "", "Output file (default: config output, else stdout)")
	renderCmd.Flags().BoolVar(&renderFlags.watch, "watch", false, "Render again whenever an input changes")
	rootCmd.AddCommand(&renderCmd)

	rootCmd.AddCommand(&checkCmd)
	rootCmd.AddCommand(&astCmd)
	rootCmd.AddCommand(&listCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("fatal", "error", err)
		stop()
		os.Exit(1)
	}
}
