package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fintel/internal/config"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "fintel",
		Short: "Social intelligence pipeline for Uganda's fintech market",
		Long: `fintel ingests social posts about Uganda's fintech market, runs them
through a staged analysis pipeline (relevance, trends, competitors,
market health), and synthesizes an investor intelligence report.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	root.AddCommand(newRunCmd(), newSeedCmd(), newPostsCmd(), newReportCmd(), newCacheCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
