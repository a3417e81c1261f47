package main

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/kwstx/email-agent/internal/api"
	"github.com/kwstx/email-agent/internal/compliance"
	"github.com/kwstx/email-agent/internal/content"
	"github.com/kwstx/email-agent/internal/enrichment"
	"github.com/kwstx/email-agent/internal/feedback"
	"github.com/kwstx/email-agent/internal/inbox"
	"github.com/kwstx/email-agent/internal/metrics"
	"github.com/kwstx/email-agent/internal/outreach"
	"github.com/kwstx/email-agent/internal/pipeline"
	"github.com/kwstx/email-agent/internal/scoring"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/config"
	appLogger "github.com/kwstx/email-agent/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "agent",
		Short:         "Adaptive lead qualification and outreach engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(enrichCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(rescoreCmd())
	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(sequenceCmd())
	rootCmd.AddCommand(inboxCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(refineCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(suppressCmd())
	rootCmd.AddCommand(unsuppressCmd())
	rootCmd.AddCommand(suppressionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// engine bundles every wired component; commands pick what they need.
type engine struct {
	cfg        *config.Config
	store      *sqlite.Store
	modelStore *scoring.ModelStore
	gate       *compliance.Gate
	crawler    *content.Crawler
	enricher   *enrichment.Enricher
	rescorer   *scoring.Rescorer
	contexts   *outreach.ContextBuilder
	sequencer  *outreach.Sequencer
	aggregator *feedback.Aggregator
	refiner    *feedback.Refiner
	monitor    *pipeline.Monitor
	inbox      *inbox.Processor
}

func newEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	metrics.Init()

	store, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	modelStore := scoring.NewModelStore(cfg.Scoring.ModelPath, cfg.Scoring.BackupDir)
	gate := compliance.NewGate(store)

	rescorer := scoring.NewRescorer(store, modelStore)
	rescorer.Staleness = daysToDuration(cfg.Scoring.StalenessDays)

	sequencer := outreach.NewSequencer(store, gate)
	sequencer.Gap = daysToDuration(cfg.Outreach.SequenceGapDays)
	sequencer.SenderName = cfg.Outreach.SenderName
	sequencer.ProductName = cfg.Outreach.ProductName

	aggregator := feedback.NewAggregator(store)
	classifier := inbox.NewClassifier(cfg.LLM.APIKey, cfg.LLM.Model)

	return &engine{
		cfg:        cfg,
		store:      store,
		modelStore: modelStore,
		gate:       gate,
		crawler:    content.NewCrawler(store),
		enricher:   enrichment.NewEnricher(store),
		rescorer:   rescorer,
		contexts:   outreach.NewContextBuilder(store),
		sequencer:  sequencer,
		aggregator: aggregator,
		refiner:    feedback.NewRefiner(aggregator, modelStore),
		monitor:    pipeline.NewMonitor(store),
		inbox:      inbox.NewProcessor(store, gate, classifier),
	}, nil
}

func (e *engine) Close() {
	e.store.Close()
	appLogger.Sync()
}

func newAPIServer(e *engine) *fiber.App {
	return api.NewServer(e.cfg, api.Deps{
		Store:      e.store,
		Gate:       e.gate,
		Aggregator: e.aggregator,
		Refiner:    e.refiner,
		Monitor:    e.monitor,
	})
}

func withEngine(fn func(e *engine) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(e)
	}
}
