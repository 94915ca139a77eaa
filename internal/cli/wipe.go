package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var wipeForce bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all stored segments",
	Long: `Delete every stored conversation segment from the backing store.

This is irreversible and intended for test setups. Prompts for
confirmation unless --force is given.`,
	RunE: runWipe,
}

func init() {
	wipeCmd.Flags().BoolVarP(&wipeForce, "force", "f", false, "skip confirmation")
}

func runWipe(cmd *cobra.Command, args []string) error {
	if !wipeForce {
		fmt.Print("This deletes ALL conversation memory. Type 'yes' to continue: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(line) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := storeClient.Wipe(context.Background()); err != nil {
		return fmt.Errorf("wipe store: %w", err)
	}
	fmt.Println("All segments deleted.")
	return nil
}
