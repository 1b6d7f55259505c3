package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptvault/promptvault/internal/cloudsql"
	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/embedding"
	"github.com/promptvault/promptvault/internal/logging"
	"github.com/promptvault/promptvault/internal/vectorstore"
)

// Build metadata, injected via -ldflags at release time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var jsonOutput bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "promptvault",
		Short: "Civitai prompt harvester and similarity search",
		Long: `Promptvault ingests image generation metadata from the Civitai images
API, keeps records that carry a prompt and a supported base model, and
stores them with prompt embeddings for similarity search.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version": version,
					"commit":  commit,
					"date":    buildDate,
				})
				return
			}
			fmt.Printf("promptvault %s (%s, %s)\n", version, commit, buildDate)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command starts
// from. Logs go to stderr so stdout stays clean for command output.
func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("configuring logging: %w", err)
	}
	return cfg, logger, nil
}

// openStore builds the vector store selected by SINK_DRIVER.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (vectorstore.Store, error) {
	if cfg.Sink.Driver == "memory" {
		return vectorstore.NewMemoryStore(), nil
	}

	logger.Info("database configuration", "config", cloudsql.ConnectionInfo())
	store, err := vectorstore.NewPgVectorStore(ctx, cfg.Sink, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}
	return store, nil
}

// buildEmbedder builds the embedding backend selected by EMBEDDING_PROVIDER.
func buildEmbedder(cfg config.Config, logger *slog.Logger) embedding.Embedder {
	if cfg.Embedding.Provider == "hash" {
		return embedding.NewHashEmbedder(cfg.Sink.EmbeddingDim)
	}
	return embedding.NewOpenAIEmbedder(cfg.Embedding, cfg.Sink.EmbeddingDim, logger)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
