package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/grillo/pkg/actions"
	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/events"
	"github.com/go-go-golems/grillo/pkg/generate"
	"github.com/go-go-golems/grillo/pkg/store"
	"github.com/go-go-golems/grillo/pkg/tokens"
)

var SendCmd = &cobra.Command{
	Use:   "send [prompt...]",
	Short: "Send a prompt and store both sides of the exchange",
	Long: `Send appends the prompt as a user message, calls the model with the
conversation history, the system instruction and the configured file
context, then stores and prints the reply. Without --chat a new
conversation is created and titled after the prompt.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		prompt := strings.Join(args, " ")
		if len(args) == 1 && args[0] == "-" {
			data, err := io.ReadAll(os.Stdin)
			cobra.CheckErr(err)
			prompt = string(data)
		}
		if strings.TrimSpace(prompt) == "" {
			cobra.CheckErr(errors.New("cannot send an empty message"))
		}
		cobra.CheckErr(runSend(cmd.Context(), cmd, prompt))
	},
}

func runSend(ctx context.Context, cmd *cobra.Command, prompt string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	client, err := newClient(ctx, s)
	if err != nil {
		return err
	}

	chatFlag, _ := cmd.Flags().GetString("chat")
	isNew := chatFlag == ""

	var id conversation.ConversationID
	if isNew {
		id, err = s.CreateConversation(ctx)
		if err != nil {
			return err
		}
	} else {
		id, err = conversation.ParseConversationID(chatFlag)
		if err != nil {
			return err
		}
	}

	return withEvents(ctx, func(ctx context.Context, manager *events.PublisherManager) error {
		var current *conversation.Metadata
		if isNew {
			manager.PublishBlind(events.NewConversationCreatedEvent(id))
		} else {
			meta, err := s.GetConversationMetadata(ctx, id)
			if err != nil {
				return err
			}
			current = meta
		}

		update, err := metadataUpdateFromFlags(ctx, cmd, s, current)
		if err != nil {
			return err
		}
		if isNew && update.Title == nil {
			title := conversation.DeriveTitle(prompt, time.Now())
			update.Title = &title
		}
		if !update.IsZero() {
			if err := s.UpdateConversationMetadata(ctx, id, update); err != nil {
				return err
			}
			manager.PublishBlind(events.NewMetadataUpdatedEvent(id))
		}

		session, meta, err := loadSession(ctx, s, id)
		if err != nil {
			return err
		}
		built, err := buildContext(ctx, meta)
		if err != nil {
			return err
		}
		session.ContextText = built.Text
		session.ContextFiles = built.Files

		userID, err := s.AppendMessage(ctx, id, conversation.RoleUser, prompt,
			store.WithModelUsed(session.Model),
			store.WithContextFiles(built.Files),
			store.WithFullPrompt(session.FullPrompt(prompt)),
		)
		if err != nil {
			return err
		}
		manager.PublishBlind(events.NewMessageAppendedEvent(id, userID, conversation.RoleUser))
		manager.PublishBlind(events.NewPendingGenerationEvent(id, prompt))

		if isNew {
			fmt.Fprintln(cmd.OutOrStdout(), "Conversation:", id)
		}

		pending := &actions.PendingGeneration{
			ConversationID: id,
			Prompt:         prompt,
			Trigger:        actions.TriggerNewMessage,
		}
		return runPending(ctx, s, client, session, pending, manager, cmd.OutOrStdout())
	})
}

// runPending drives one queued generation round trip: build the full
// prompt, call the collaborator with the trimmed history, persist the
// reply. A failed call is itself recorded as an assistant message so
// the transcript shows what happened.
func runPending(
	ctx context.Context,
	s *store.Store,
	client generate.Client,
	session *actions.Session,
	pending *actions.PendingGeneration,
	manager *events.PublisherManager,
	w io.Writer,
) error {
	messages, err := s.GetMessages(ctx, session.ConversationID)
	if err != nil {
		return err
	}
	turns := generate.TrimHistory(generate.TurnsFromMessages(messages), generate.MaxHistoryPairs)

	config := session.Config.Clone()
	config.MaxOutputTokens = tokens.ClampMaxOutput(config.MaxOutputTokens, client.ModelOutputCeiling(ctx, session.Model))

	log.Debug().
		Str("conversation_id", session.ConversationID.String()).
		Str("model", session.Model).
		Str("trigger", pending.Trigger).
		Int("history_turns", len(turns)).
		Msg("calling collaborator")

	response, err := client.Generate(ctx, session.Model, session.FullPrompt(pending.Prompt), config, turns)
	if err != nil {
		if _, saveErr := s.AppendMessage(ctx, session.ConversationID, conversation.RoleAssistant, "Error: "+err.Error()); saveErr != nil {
			log.Error().Err(saveErr).Msg("could not record the failed call")
		}
		return err
	}

	msgID, err := s.AppendMessage(ctx, session.ConversationID, conversation.RoleAssistant, response,
		store.WithModelUsed(session.Model))
	if err != nil {
		return errors.Wrap(err, "could not save the reply")
	}
	manager.PublishBlind(events.NewMessageAppendedEvent(session.ConversationID, msgID, conversation.RoleAssistant))

	_, err = fmt.Fprintln(w, response)
	return err
}

func init() {
	SendCmd.Flags().String("chat", "", "Conversation to continue (default: start a new one)")
	registerChatSettingsFlags(SendCmd)
}
