package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fintel/internal/cache"
	"fintel/internal/collect"
	"fintel/internal/llm"
	"fintel/internal/obs"
	"fintel/internal/pipeline"
	"fintel/internal/render"
	"fintel/internal/scoring"
	"fintel/internal/store"
	"fintel/internal/synthesis"
	"fintel/internal/vectorstore"
)

func newRunCmd() *cobra.Command {
	var printMarkdown bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the full analysis pipeline and persist the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := obs.Setup(ctx, cfg.OTLPEndpoint)
			if err != nil {
				return fmt.Errorf("tracing setup: %w", err)
			}
			defer shutdown(ctx)

			db, err := store.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			cacheDB, err := cache.OpenSQLite(cfg.CachePath())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer cacheDB.Close()
			advisory := cache.NewAdvisory(cacheDB, logger)

			vectors, err := vectorstore.OpenLocal(cfg.VectorPath())
			if err != nil {
				return fmt.Errorf("open vector store: %w", err)
			}
			defer vectors.Close()

			completer, err := llm.NewAnthropicCompleterFromEnv(cfg.Model, cfg.MaxTokens)
			if err != nil {
				return err
			}
			gateway := llm.NewGateway(completer, cfg.LLMTimeout, logger)

			stages := []pipeline.Stage{
				&pipeline.FetchStage{
					Source:   &collect.StoreSource{Store: db},
					Fallback: collect.NewSampleSource(),
					Limit:    cfg.FetchLimit,
					Logger:   logger,
				},
				&pipeline.PreprocessStage{
					Relevance: scoring.NewRelevance(cfg.KeywordWeights, cfg.RelevanceThreshold),
					Store:     db,
					Vector:    vectors,
					Logger:    logger,
				},
				&pipeline.SocialStage{
					Completer: gateway,
					Cache:     advisory,
					Trends:    scoring.NewTrendDetector(nil, cfg.TrendingDays),
					TTL:       cfg.SocialTTL,
					Logger:    logger,
				},
				&pipeline.CompetitorStage{
					Completer:   gateway,
					Cache:       advisory,
					Store:       db,
					Competitors: cfg.Competitors,
					TTL:         cfg.CompetitorTTL,
					Logger:      logger,
				},
				&pipeline.MarketStage{
					Completer: gateway,
					Cache:     advisory,
					Vector:    vectors,
					Segments:  cfg.Segments,
					TTL:       cfg.MarketTTL,
					Logger:    logger,
				},
				&pipeline.SynthesizeStage{
					Synth:  synthesis.NewSynthesizer(gateway),
					Store:  db,
					Logger: logger,
				},
			}

			st, err := pipeline.NewOrchestrator(stages, logger).Run(ctx)
			if err != nil {
				return err
			}

			retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
			if deleted, err := db.DeleteOlderThan(ctx, retention); err != nil {
				logger.Warn("retention cleanup failed", zap.Error(err))
			} else if deleted > 0 {
				logger.Info("retention cleanup", zap.Int64("deleted", deleted))
			}
			if deleted, err := vectors.DeleteOlderThan(ctx, cfg.RetentionDays); err != nil {
				logger.Warn("vector retention cleanup failed", zap.Error(err))
			} else if deleted > 0 {
				logger.Info("vector retention cleanup", zap.Int64("deleted", deleted))
			}

			rep := *st.Report
			if printMarkdown {
				fmt.Fprint(cmd.OutOrStdout(), render.Markdown(rep))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report %s: health %.1f/10 (%s), confidence %.0f%%, %d trend(s), %d error(s)\n",
				rep.ID, rep.HealthScore, rep.HealthLabel, rep.Confidence*100, len(rep.KeyTrends), len(rep.Errors))
			for _, e := range rep.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printMarkdown, "markdown", false, "print the full report as markdown")
	return cmd
}
