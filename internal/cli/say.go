package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josefus/minne/internal/chat"
	"github.com/josefus/minne/internal/llm"
	"github.com/josefus/minne/internal/token"
)

var (
	sayChatID  string
	sayPersona string
)

var sayCmd = &cobra.Command{
	Use:   "say <message>",
	Short: "Send one conversation turn",
	Long: `Send one turn to a persona assistant and print the reply.

The conversation id scopes memory: turns sent with the same --chat id share
recall. Without --chat a fresh conversation is created and its id printed.

Examples:
  minne say "is it bigger than a phone?" --chat riddle-42
  minne say "which message broker should we use?" --persona advisor`,
	Args: cobra.ExactArgs(1),
	RunE: runSay,
}

func init() {
	sayCmd.Flags().StringVarP(&sayChatID, "chat", "c", "", "conversation id (empty: new conversation)")
	sayCmd.Flags().StringVarP(&sayPersona, "persona", "p", "chat", "persona (chat, advisor, coach)")
}

func runSay(cmd *cobra.Command, args []string) error {
	message := args[0]
	ctx := context.Background()

	persona, ok := llm.Personas[sayPersona]
	if !ok {
		return fmt.Errorf("unknown persona %q", sayPersona)
	}

	mem, err := getMemory()
	if err != nil {
		return err
	}
	chatModel, err := getModel()
	if err != nil {
		return err
	}

	assistant := llm.NewPersonaAssistant(chatModel, persona, logger, nil)
	tok := token.ForModel(cfg.LLMModel, logger)
	service := chat.NewService(assistant, mem, tok, cfg.ContextTokenBudget, nil, logger)

	result := service.Process(ctx, sayChatID, message)

	if sayChatID == "" {
		fmt.Printf("Conversation: %s\n\n", result.ChatID)
	}
	fmt.Println(result.Reply)
	return nil
}
