// Command chatcli asks the study bot questions from a terminal.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"studybot/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		server  string
		userID  string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:          "chatcli",
		Short:        "Talk to the study bot API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&server, "server", envOr("STUDYBOT_URL", "http://localhost:8080"), "study bot base URL")
	root.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("STUDYBOT_USER"), "conversation user id")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (0 waits indefinitely)")

	requireUser := func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(userID) == "" {
			return fmt.Errorf("--user is required")
		}
		return nil
	}

	ask := &cobra.Command{
		Use:     "ask [question]",
		Short:   "Ask a question and print the answer",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: requireUser,
		RunE: func(cmd *cobra.Command, args []string) error {
			answer, err := client.New(server, timeout).Ask(cmd.Context(), userID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	history := &cobra.Command{
		Use:     "history",
		Short:   "Print the stored conversation",
		Args:    cobra.NoArgs,
		PreRunE: requireUser,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msgs, err := client.New(server, timeout).Conversations(cmd.Context(), userID)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", m.Timestamp.Format(time.RFC3339), m.Role, m.Content)
			}
			return nil
		},
	}

	health := &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := client.New(server, timeout).Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	root.AddCommand(ask, history, health)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
