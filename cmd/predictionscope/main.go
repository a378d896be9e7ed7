package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/predictionscope/agent/internal/app"
	"github.com/predictionscope/agent/internal/config"
	"github.com/predictionscope/agent/internal/inventory"
	"github.com/predictionscope/agent/internal/logging"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "predictionscope",
		Short: "Autonomous content agent for prediction market coverage",
		Long: `PredictionScope watches prediction markets and news trends, decides
which articles are worth writing, generates drafts and proposes them
for editorial review.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	rootCmd.AddCommand(runCmd(), serveCmd(), inventoryCmd(), auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single run and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(configPath)
			logger := logging.New(cfg.Logging.Level)

			application := app.New(cfg, logger)
			if err := application.RunOnce(cmd.Context(), dryRun); err != nil {
				logger.Error("run failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate and persist drafts without opening a review or notifying")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on the configured interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(configPath)
			logger := logging.New(cfg.Logging.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("serving", "interval", cfg.Scheduler.Every().String())
			application := app.New(cfg, logger)
			if err := application.Serve(ctx); err != nil {
				logger.Error("serve stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func inventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "List every artifact in the content tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(configPath)

			items, err := inventory.Scan(cfg.Data.ContentDir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "URL\tSTATUS\tWORDS\tTITLE")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", it.URL, it.Status, it.WordCount, it.Title)
			}
			return w.Flush()
		},
	}
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Audit the internal link graph of the content tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(configPath)

			items, err := inventory.Scan(cfg.Data.ContentDir)
			if err != nil {
				return err
			}

			audit := inventory.AuditLinks(items)
			fmt.Printf("pages: %d\n", audit.TotalPages)
			fmt.Printf("average inbound links: %.2f\n", audit.AverageInbound)
			if len(audit.OrphanPages) > 0 {
				fmt.Println("orphans (no inbound links):")
				for _, url := range audit.OrphanPages {
					fmt.Printf("  %s\n", url)
				}
			}
			if len(audit.UnderLinked) > 0 {
				fmt.Println("under-linked (one inbound link):")
				for _, url := range audit.UnderLinked {
					fmt.Printf("  %s\n", url)
				}
			}
			return nil
		},
	}
}
