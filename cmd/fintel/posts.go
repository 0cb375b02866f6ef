package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fintel/internal/store"
)

func newPostsCmd() *cobra.Command {
	var hours, limit int
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List recently collected posts",
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

			docs, err := db.RecentPosts(cmd.Context(), time.Duration(hours)*time.Hour, limit)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no posts in the last %dh\n", hours)
				return nil
			}
			for _, doc := range docs {
				text := doc.Text
				if len(text) > 100 {
					text = text[:97] + "..."
				}
				text = strings.ReplaceAll(text, "\n", " ")
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-20s %s\n",
					doc.PostedAt.Format("2006-01-02 15:04"), doc.Source, doc.Author, text)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d post(s)\n", len(docs))
			return nil
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "look-back window in hours")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum posts to list")
	return cmd
}
