package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/retrieval"
)

func newQueryCmd() *cobra.Command {
	var (
		prompt    string
		baseModel string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored records or search them by prompt similarity",
		Long: `Query lists stored records, newest first. With --prompt it instead
embeds the given text and returns the closest stored prompts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSink(); err != nil {
				return err
			}
			// The embedder is only exercised by similarity search.
			if prompt != "" {
				if err := cfg.ValidateEmbedding(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			facade := retrieval.NewFacade(store, buildEmbedder(cfg, logger), logger)

			if prompt != "" {
				matches, err := facade.SimilarPrompts(ctx, prompt, baseModel, limit)
				if err != nil {
					return err
				}
				printMatches(matches)
				return nil
			}

			records, err := facade.Records(ctx, models.RecordQuery{BaseModel: baseModel, Limit: limit})
			if err != nil {
				return err
			}
			printRecords(records)
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Search text; when set, runs a similarity search")
	cmd.Flags().StringVar(&baseModel, "base-model", "", "Filter by base model (Illustrious, Flux.1 D, Pony)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (0 = default)")

	return cmd
}

func printMatches(matches []models.PromptMatch) {
	if jsonOutput {
		printJSON(matches)
		return
	}
	if len(matches) == 0 {
		fmt.Println("No matches")
		return
	}
	for i, match := range matches {
		fmt.Printf("%2d. %.3f  id=%d  %s\n", i+1, match.Score, match.Record.ID, match.Record.BaseModel)
		fmt.Printf("    %s\n", match.Record.Prompt)
	}
}

func printRecords(records []models.ImageRecord) {
	if jsonOutput {
		printJSON(records)
		return
	}
	if len(records) == 0 {
		fmt.Println("No records")
		return
	}
	for _, record := range records {
		fmt.Printf("id=%d  %s  ingested %s\n", record.ID, record.BaseModel, record.IngestedAt.Format(time.RFC3339))
		fmt.Printf("  %s\n", record.Prompt)
	}
}
