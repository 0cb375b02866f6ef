package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintel/internal/cache"
	"fintel/internal/store"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the analysis cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show cache and store counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cacheDB, err := cache.OpenSQLite(cfg.CachePath())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer cacheDB.Close()

			cs, err := cacheDB.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache: %d entries (%d expired)\n", cs.Entries, cs.Expired)

			db, err := store.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()
			counts, err := db.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store: %d posts (%d unprocessed), %d mentions, %d insights, %d reports\n",
				counts.Posts, counts.Unprocessed, counts.Mentions, counts.Insights, counts.Reports)
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cache entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cacheDB, err := cache.OpenSQLite(cfg.CachePath())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer cacheDB.Close()
			if err := cacheDB.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete only expired cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cacheDB, err := cache.OpenSQLite(cfg.CachePath())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer cacheDB.Close()
			n, err := cacheDB.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired entries\n", n)
			return nil
		},
	}

	cmd.AddCommand(stats, clear, purge)
	return cmd
}
