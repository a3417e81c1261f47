package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/inbox"
	"github.com/kwstx/email-agent/internal/scheduler"
	"github.com/kwstx/email-agent/internal/scoring"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/pkg/batch"
	appLogger "github.com/kwstx/email-agent/pkg/logger"
)

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func minutesToDuration(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the database schema and seed the scoring model",
		RunE: withEngine(func(e *engine) error {
			if _, err := e.modelStore.Load(); err == nil {
				fmt.Println("Scoring model already present, leaving it untouched.")
				return nil
			}

			if err := e.modelStore.Save(scoring.DefaultModel()); err != nil {
				return fmt.Errorf("failed to seed scoring model: %w", err)
			}
			fmt.Printf("Seeded scoring model at %s\n", e.cfg.Scoring.ModelPath)
			return nil
		}),
	}
}

// runCmd starts the self-sustaining mode: all recurring jobs plus the HTTP
// API, until interrupted.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the engine with all recurring jobs and the HTTP API",
		RunE: withEngine(func(e *engine) error {
			jobs := e.cfg.Jobs
			sched := scheduler.New(e.store)

			sched.Add("crawl", minutesToDuration(jobs.CrawlIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				return e.crawler.Run(ctx)
			})
			sched.Add("scoring", minutesToDuration(jobs.ScoringIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				return e.rescorer.RunUnscored()
			})
			sched.Add("rescoring", minutesToDuration(jobs.RescoringIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				return e.rescorer.RunRescore()
			})
			sched.Add("enrichment", minutesToDuration(jobs.ScoringIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				return e.enricher.Run()
			})
			sched.Add("context", minutesToDuration(jobs.ScoringIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				return e.contexts.Run()
			})
			sched.Add("outreach", minutesToDuration(jobs.OutreachIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				return e.sequencer.Run()
			})
			sched.Add("compliance", minutesToDuration(jobs.ComplianceIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				return e.gate.Reconcile()
			})
			sched.Add("refinement", minutesToDuration(jobs.RefinementIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				_, err := e.refiner.Refine(false)
				return nil, err
			})
			sched.Add("health", minutesToDuration(jobs.HealthIntervalMin), func(ctx context.Context) (*batch.Report, error) {
				_, err := e.monitor.LogHealthReport()
				return nil, err
			})

			app := newAPIServer(e)
			addr := fmt.Sprintf("%s:%d", e.cfg.Server.Host, e.cfg.Server.Port)
			go func() {
				if err := app.Listen(addr); err != nil {
					appLogger.Fatal("Server failed to start", zap.Error(err))
				}
			}()
			appLogger.Info("Engine started", zap.String("address", addr))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			sched.Start(ctx)

			appLogger.Info("Shutting down gracefully...")
			return app.Shutdown()
		}),
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run only the HTTP API",
		RunE: withEngine(func(e *engine) error {
			app := newAPIServer(e)
			addr := fmt.Sprintf("%s:%d", e.cfg.Server.Host, e.cfg.Server.Port)
			appLogger.Info("Server starting", zap.String("address", addr))
			return app.Listen(addr)
		}),
	}
}

func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Fetch content for companies that have not been scraped",
		RunE: withEngine(func(e *engine) error {
			report, err := e.crawler.Run(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(report.Summary())
			return nil
		}),
	}
}

func enrichCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Derive risk and compliance flags from scraped content",
		RunE: withEngine(func(e *engine) error {
			e.enricher.Force = force
			report, err := e.enricher.Run()
			if err != nil {
				return err
			}
			fmt.Println(report.Summary())
			return nil
		}),
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-analyze companies that already carry risk flags")
	return cmd
}

func scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Score companies that have content but no score",
		RunE: withEngine(func(e *engine) error {
			report, err := e.rescorer.RunUnscored()
			if err != nil {
				return err
			}
			fmt.Println(report.Summary())
			return nil
		}),
	}
}

func rescoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescore",
		Short: "Re-score companies with stale scores or an outdated model",
		RunE: withEngine(func(e *engine) error {
			report, err := e.rescorer.RunRescore()
			if err != nil {
				return err
			}
			fmt.Println(report.Summary())
			return nil
		}),
	}
}

func contextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Build narrative context for scored companies",
		RunE: withEngine(func(e *engine) error {
			report, err := e.contexts.Run()
			if err != nil {
				return err
			}
			fmt.Println(report.Summary())
			return nil
		}),
	}
}

func sequenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sequence",
		Short: "Advance the outreach sequence for all eligible contacts",
		RunE: withEngine(func(e *engine) error {
			report, err := e.sequencer.Run()
			if err != nil {
				return err
			}
			fmt.Println(report.Summary())
			return nil
		}),
	}
}

// inboxCmd ingests replies from a JSON file. The mailbox poller that feeds
// this file lives outside the engine.
func inboxCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Process inbound replies from a JSON file",
		RunE: withEngine(func(e *engine) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read messages file: %w", err)
			}

			var messages []inbox.InboundMessage
			if err := json.Unmarshal(data, &messages); err != nil {
				return fmt.Errorf("malformed messages file: %w", err)
			}

			report, err := e.inbox.Process(context.Background(), messages)
			if err != nil {
				return err
			}
			fmt.Println(report.Summary())
			return nil
		}),
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file of inbound messages")
	cmd.MarkFlagRequired("file")
	return cmd
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the outcome report (reply rates per signal and tier)",
		RunE: withEngine(func(e *engine) error {
			report, err := e.aggregator.LogReport()
			if err != nil {
				return err
			}
			return printJSON(report)
		}),
	}
}

func refineCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Adjust signal weights and tier thresholds from outcome data",
		RunE: withEngine(func(e *engine) error {
			summary, err := e.refiner.Refine(dryRun)
			if err != nil {
				return err
			}
			return printJSON(summary)
		}),
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute changes without persisting them")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the scoring model's refinement history",
		RunE: withEngine(func(e *engine) error {
			model, err := e.modelStore.Load()
			if err != nil {
				return err
			}
			if len(model.History) == 0 {
				fmt.Println("No refinements recorded yet.")
				return nil
			}
			return printJSON(model.History)
		}),
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the pipeline health report",
		RunE: withEngine(func(e *engine) error {
			report, err := e.monitor.LogHealthReport()
			if err != nil {
				return err
			}
			return printJSON(report)
		}),
	}
}

func suppressCmd() *cobra.Command {
	var entryType, reason string

	cmd := &cobra.Command{
		Use:   "suppress [value]",
		Short: "Add an email or domain to the suppression list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			added, err := e.gate.Suppress(args[0], entryType, reason)
			if err != nil {
				return err
			}
			if added {
				fmt.Printf("Suppressed %s (%s)\n", args[0], entryType)
			} else {
				fmt.Printf("%s was already suppressed\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entryType, "type", models.SuppressionEmail, "entry type: email or domain")
	cmd.Flags().StringVar(&reason, "reason", "manual", "reason for suppression")
	return cmd
}

func unsuppressCmd() *cobra.Command {
	var entryType string

	cmd := &cobra.Command{
		Use:   "unsuppress [value]",
		Short: "Remove an email or domain from the suppression list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			removed, err := e.gate.Unsuppress(args[0], entryType)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%s is not on the suppression list", args[0])
			}
			fmt.Printf("Removed %s from the suppression list\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&entryType, "type", models.SuppressionEmail, "entry type: email or domain")
	return cmd
}

func suppressionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suppressions",
		Short: "List the suppression list with stats",
		RunE: withEngine(func(e *engine) error {
			entries, err := e.gate.List()
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Printf("%-8s %-40s %s\n", entry.Type, entry.Value, entry.Reason)
			}

			stats, err := e.gate.GetStats()
			if err != nil {
				return err
			}
			fmt.Printf("Total: %d\n", stats.Total)
			return nil
		}),
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
