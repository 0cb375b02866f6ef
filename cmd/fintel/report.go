package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fintel/internal/render"
	"fintel/internal/store"
)

func newReportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the most recent report",
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

			rep, err := db.LatestReport(cmd.Context())
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no reports yet, run `fintel run` first")
			}
			if err != nil {
				return err
			}

			var body []byte
			switch format {
			case "md", "markdown":
				body = []byte(render.Markdown(rep))
			case "html":
				doc, err := render.HTML(rep)
				if err != nil {
					return err
				}
				body = []byte(doc)
			case "pdf":
				if out == "" {
					return fmt.Errorf("pdf output requires --out")
				}
				body, err = render.PDF(cmd.Context(), rep)
				if err != nil {
					return fmt.Errorf("render pdf: %w", err)
				}
			default:
				return fmt.Errorf("unknown format %q (md, html, pdf)", format)
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "md", "output format: md, html, or pdf")
	cmd.Flags().StringVar(&out, "out", "", "write output to a file instead of stdout")
	return cmd
}
