// Command enrichd runs the enrichment service: HTTP API, job queue
// workers, and the SSE event stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/enrichment/internal/app"
	"github.com/jonesrussell/north-cloud/enrichment/internal/config"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
)

const version = "1.0.0"

var cfgFile string

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "enrichd",
		Short: "Lead enrichment service",
		Long:  "Runs the enrichment API, the job queue workers, and the event stream.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "config file path")

	root.AddCommand(serveCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("enrichd version %s\n", version)
		},
	})

	return root
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the enrichment service",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real environment variables win.
			_ = godotenv.Load()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			log, err := logger.NewForDebug(cfg.Debug)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}

			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.Run(ctx)
		},
	}
}
