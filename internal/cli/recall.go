package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josefus/minne/internal/token"
)

var (
	recallChatID string
	recallTokens int
)

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Recall conversation memory for a query",
	Long: `Recall what a conversation remembers about a query.

Runs the same retrieval the chat orchestrator uses: semantic search scoped
to the conversation, recency/relevance fusion, deduplication and a token
budget. Useful for inspecting what context a persona would see.

Examples:
  minne recall "the secret object" --chat riddle-42
  minne recall "database choice" --chat adv-7 --tokens 1000`,
	Args: cobra.ExactArgs(1),
	RunE: runRecall,
}

func init() {
	recallCmd.Flags().StringVarP(&recallChatID, "chat", "c", "", "conversation id (required)")
	recallCmd.Flags().IntVarP(&recallTokens, "tokens", "n", 0, "token budget (default: configured budget)")
	_ = recallCmd.MarkFlagRequired("chat")
}

func runRecall(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx := context.Background()

	mem, err := getMemory()
	if err != nil {
		return err
	}

	budget := recallTokens
	if budget <= 0 {
		budget = cfg.ContextTokenBudget
	}
	tok := token.ForModel(cfg.LLMModel, logger)

	messages := mem.Retrieve(ctx, recallChatID, query, budget, tok)
	if len(messages) == 0 {
		fmt.Println("No memory recalled.")
		return nil
	}

	fmt.Printf("Recalled %d messages (most recent first):\n\n", len(messages))
	for i, msg := range messages {
		fmt.Printf("[memory#%d] %s: %s\n", i+1, msg.Role, msg.Text)
	}
	return nil
}
