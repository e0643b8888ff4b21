package cmds

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/grillo/pkg/actions"
	"github.com/go-go-golems/grillo/pkg/events"
	"github.com/go-go-golems/grillo/pkg/generate"
)

var MessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Inspect and rework individual messages",
}

var messagesShowCmd = &cobra.Command{
	Use:   "show MESSAGE",
	Short: "Print one message with its audit fields",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		id, err := parseMessageID(args[0])
		cobra.CheckErr(err)
		msg, err := s.GetMessage(ctx, id)
		cobra.CheckErr(err)

		fmt.Printf("Message:      %d\n", msg.ID)
		fmt.Printf("Conversation: %s\n", msg.ConversationID)
		fmt.Printf("Time:         %s\n", msg.Time.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Role:         %s\n", msg.Role.Capitalized())
		if msg.ModelUsed != "" {
			fmt.Printf("Model:        %s\n", msg.ModelUsed)
		}
		if len(msg.ContextFiles) > 0 {
			fmt.Printf("Context:      %s\n", strings.Join(msg.ContextFiles, ", "))
		}
		fmt.Printf("\n%s\n", msg.Content)

		if full, _ := cmd.Flags().GetBool("full-prompt"); full && msg.FullPrompt != "" {
			fmt.Printf("\n--- Full prompt sent ---\n%s\n", msg.FullPrompt)
		}
	},
}

var messagesDeleteCmd = &cobra.Command{
	Use:   "delete MESSAGE",
	Short: "Delete one message",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		session, _, msg, err := messageSession(ctx, s, args[0])
		cobra.CheckErr(err)

		err = withEvents(ctx, func(ctx context.Context, manager *events.PublisherManager) error {
			engine := actions.NewEngine(s, nil, actions.WithPublisherManager(manager))
			return engine.Delete(ctx, session, msg.ID)
		})
		cobra.CheckErr(err)
		fmt.Println("Deleted message", msg.ID)
	},
}

var messagesEditCmd = &cobra.Command{
	Use:   "edit MESSAGE",
	Short: "Rewrite a user message, drop what followed and resubmit it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		content, err := contentFromFlags(cmd)
		cobra.CheckErr(err)

		session, meta, msg, err := messageSession(ctx, s, args[0])
		cobra.CheckErr(err)

		noSend, _ := cmd.Flags().GetBool("no-send")
		var client generate.Client
		if !noSend {
			client, err = newClient(ctx, s)
			cobra.CheckErr(err)

			built, err := buildContext(ctx, meta)
			cobra.CheckErr(err)
			session.ContextText = built.Text
			session.ContextFiles = built.Files
		}

		err = withEvents(ctx, func(ctx context.Context, manager *events.PublisherManager) error {
			engine := actions.NewEngine(s, client, actions.WithPublisherManager(manager))
			pending, err := engine.EditAndResubmit(ctx, session, msg.ID, content)
			if err != nil {
				return err
			}
			if noSend {
				fmt.Println("Edited message", msg.ID)
				return nil
			}
			return runPending(ctx, s, client, session, pending, manager, cmd.OutOrStdout())
		})
		cobra.CheckErr(err)
	},
}

var messagesRegenerateCmd = &cobra.Command{
	Use:   "regenerate MESSAGE",
	Short: "Drop an assistant reply and everything after it, then ask again",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		session, meta, msg, err := messageSession(ctx, s, args[0])
		cobra.CheckErr(err)

		noSend, _ := cmd.Flags().GetBool("no-send")
		var client generate.Client
		if !noSend {
			client, err = newClient(ctx, s)
			cobra.CheckErr(err)

			built, err := buildContext(ctx, meta)
			cobra.CheckErr(err)
			session.ContextText = built.Text
			session.ContextFiles = built.Files
		}

		err = withEvents(ctx, func(ctx context.Context, manager *events.PublisherManager) error {
			engine := actions.NewEngine(s, client, actions.WithPublisherManager(manager))
			pending, err := engine.Regenerate(ctx, session, msg.ID)
			if err != nil {
				return err
			}
			if noSend {
				fmt.Println("Queued prompt:", pending.Prompt)
				return nil
			}
			return runPending(ctx, s, client, session, pending, manager, cmd.OutOrStdout())
		})
		cobra.CheckErr(err)
	},
}

var messagesSummarizeCmd = &cobra.Command{
	Use:   "summarize MESSAGE",
	Short: "Replace the history on one side of a message with a summary",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		before, _ := cmd.Flags().GetBool("before")
		after, _ := cmd.Flags().GetBool("after")
		if before == after {
			cobra.CheckErr(errors.New("pass exactly one of --before or --after"))
		}

		session, _, msg, err := messageSession(ctx, s, args[0])
		cobra.CheckErr(err)

		client, err := newClient(ctx, s)
		cobra.CheckErr(err)

		var result *actions.SummaryResult
		err = withEvents(ctx, func(ctx context.Context, manager *events.PublisherManager) error {
			engine := actions.NewEngine(s, client, actions.WithPublisherManager(manager))
			var err error
			if before {
				result, err = engine.SummarizeBefore(ctx, session, msg.ID)
			} else {
				result, err = engine.SummarizeAfter(ctx, session, msg.ID)
			}
			return err
		})
		var stranded *actions.SummaryAppendError
		if errors.As(err, &stranded) {
			fmt.Fprintf(os.Stderr, "The summary could not be saved; copy it from below:\n\n%s\n", stranded.Summary)
		}
		cobra.CheckErr(err)

		if !result.Summarized {
			fmt.Println("Nothing to summarize")
			return
		}
		fmt.Printf("Replaced %d messages with summary message %d\n\n%s\n", result.Deleted, result.SummaryID, result.Summary)
	},
}

func init() {
	messagesShowCmd.Flags().Bool("full-prompt", false, "Also print the full prompt sent for this message")

	messagesEditCmd.Flags().String("content", "", "New message content")
	messagesEditCmd.Flags().String("content-file", "", "Read the new content from a file, - for stdin")
	messagesEditCmd.Flags().Bool("no-send", false, "Rewrite the history but skip the generation call")

	messagesRegenerateCmd.Flags().Bool("no-send", false, "Rewrite the history but skip the generation call")

	messagesSummarizeCmd.Flags().Bool("before", false, "Summarize the messages before this one")
	messagesSummarizeCmd.Flags().Bool("after", false, "Summarize the messages after this one")

	MessagesCmd.AddCommand(messagesShowCmd)
	MessagesCmd.AddCommand(messagesDeleteCmd)
	MessagesCmd.AddCommand(messagesEditCmd)
	MessagesCmd.AddCommand(messagesRegenerateCmd)
	MessagesCmd.AddCommand(messagesSummarizeCmd)
}
