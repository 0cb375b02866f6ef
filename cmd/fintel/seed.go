package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fintel/internal/collect"
	"fintel/internal/store"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the bundled sample posts into the post store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			posts := collect.SamplePosts(time.Now())
			for _, doc := range posts {
				if _, err := db.AddPost(cmd.Context(), doc); err != nil {
					return fmt.Errorf("seed post: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d posts into %s\n", len(posts), cfg.DatabasePath())
			return nil
		},
	}
}
