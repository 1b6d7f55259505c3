package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/ingestion"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cursor position and stored record count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSink(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			cursors := ingestion.NewFileCursorStore(cfg.Cursor.Path, logger)
			state, err := cursors.Load(ctx)
			if err != nil {
				return err
			}
			count, err := store.Count(ctx)
			if err != nil {
				return fmt.Errorf("counting records: %w", err)
			}

			if jsonOutput {
				printJSON(map[string]any{
					"records": count,
					"cursor":  state,
				})
				return nil
			}

			fmt.Printf("Records:   %d\n", count)
			if state.Cursor == "" {
				fmt.Println("Cursor:    (start)")
			} else {
				fmt.Printf("Cursor:    %s\n", state.Cursor)
			}
			fmt.Printf("Processed: %d\n", state.TotalProcessed)
			if !state.UpdatedAt.IsZero() {
				fmt.Printf("Updated:   %s\n", state.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
