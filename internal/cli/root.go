// Package cli provides the command-line interface for minne.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/josefus/minne/internal/config"
	"github.com/josefus/minne/internal/llm"
	"github.com/josefus/minne/internal/memory"
	"github.com/josefus/minne/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and store client
	cfg         config.Config
	storeClient *store.Client
	logger      *slog.Logger

	// Lazy-initialized LLM components
	embedder *llm.CachedEmbedder
	model    *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "minne",
	Short: "Conversational memory for persona assistants",
	Long: `Minne keeps conversation memory for persona assistants: every turn is
embedded and stored per conversation, and recalled semantically with a
recency floor when the conversation continues.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip store connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		ctx := context.Background()
		storeClient, err = store.NewClient(ctx, store.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger, nil)
		if err != nil {
			return fmt.Errorf("connect to store: %w", err)
		}

		if err := storeClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if storeClient != nil {
			if err := storeClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
	},
}

// getMemory creates the memory store with lazy embedder initialization.
func getMemory() (*memory.Store, error) {
	if embedder == nil {
		raw, err := llm.NewEmbedder(cfg, nil)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		embedder, err = llm.NewCachedEmbedder(raw)
		if err != nil {
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
	}
	return memory.NewStore(storeClient, embedder, logger)
}

// getModel lazily creates the chat model.
func getModel() (*llm.Model, error) {
	if model == nil {
		var err error
		model, err = llm.NewModel(cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}
	return model, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(wipeCmd)
}
