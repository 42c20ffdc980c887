package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scopewell/scope-copilot/internal/model"
)

var (
	chatPlatform string
	chatThread   string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Scope a project interactively from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("chat"); err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		threadID := chatThread
		if threadID == "" {
			threadID = uuid.New().String()
		}

		fmt.Printf("Scoping session %s (platform %s). Describe your project; ctrl-d to quit.\n", threadID, platformOrDefault())

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			message := strings.TrimSpace(scanner.Text())
			if message == "" {
				fmt.Print("> ")
				continue
			}

			reply, err := env.Engine.HandleMessage(ctx, threadID, chatPlatform, message)
			if err != nil {
				return err
			}

			fmt.Println(reply.Text)

			if reply.State.Terminal() {
				if reply.State == model.StateScoped {
					fmt.Println("\nFinal scope:")
					for field, value := range reply.FinalSpec {
						fmt.Printf("  %s: %v\n", field, value)
					}
				}
				return nil
			}
			fmt.Print("> ")
		}
		return scanner.Err()
	},
}

func platformOrDefault() string {
	if chatPlatform != "" {
		return chatPlatform
	}
	return cfg.Engine.DefaultPlatform
}

func init() {
	chatCmd.Flags().StringVar(&chatPlatform, "platform", "", "platform schema to scope against (default from config)")
	chatCmd.Flags().StringVar(&chatThread, "thread", "", "resume or name a thread id (default random)")
	rootCmd.AddCommand(chatCmd)
}
