package cmds

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/events"
	"github.com/go-go-golems/grillo/pkg/render"
	"github.com/go-go-golems/grillo/pkg/store"
)

var ChatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage stored conversations",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		limit, _ := cmd.Flags().GetInt("limit")
		pattern, _ := cmd.Flags().GetString("filter")

		summaries, err := s.ListRecentConversations(ctx, limit)
		cobra.CheckErr(err)

		for _, summary := range summaries {
			if pattern != "" {
				matched, err := glob.Match(pattern, summary.Title)
				cobra.CheckErr(err)
				if !matched {
					continue
				}
			}
			fmt.Printf("%s  %s  %s\n",
				summary.ID,
				summary.LastUpdateAt.Local().Format("2006-01-02 15:04"),
				summary.Title)
		}
	},
}

var chatsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a conversation",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		var id conversation.ConversationID
		err = withEvents(ctx, func(ctx context.Context, manager *events.PublisherManager) error {
			var err error
			id, err = s.CreateConversation(ctx)
			if err != nil {
				return err
			}
			manager.PublishBlind(events.NewConversationCreatedEvent(id))

			update, err := metadataUpdateFromFlags(ctx, cmd, s, nil)
			if err != nil {
				return err
			}
			if update.IsZero() {
				return nil
			}
			if err := s.UpdateConversationMetadata(ctx, id, update); err != nil {
				return err
			}
			manager.PublishBlind(events.NewMetadataUpdatedEvent(id))
			return nil
		})
		cobra.CheckErr(err)

		fmt.Println(id)
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show CONVERSATION",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		id, err := conversation.ParseConversationID(args[0])
		cobra.CheckErr(err)

		meta, err := s.GetConversationMetadata(ctx, id)
		cobra.CheckErr(err)
		messages, err := s.GetMessages(ctx, id)
		cobra.CheckErr(err)

		withMetadata, _ := cmd.Flags().GetBool("with-metadata")
		renderer := &render.Renderer{WithMetadata: withMetadata}
		transcript, err := renderer.Transcript(meta, messages)
		cobra.CheckErr(err)

		plain, _ := cmd.Flags().GetBool("plain")
		if !plain && isatty.IsTerminal(os.Stdout.Fd()) {
			style, _ := cmd.Flags().GetString("style")
			styled, err := render.Styled(transcript, style)
			cobra.CheckErr(err)
			fmt.Print(styled)
			return
		}
		fmt.Print(transcript)
	},
}

var chatsExportCmd = &cobra.Command{
	Use:   "export CONVERSATION",
	Short: "Write a conversation transcript to a markdown file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		id, err := conversation.ParseConversationID(args[0])
		cobra.CheckErr(err)

		meta, err := s.GetConversationMetadata(ctx, id)
		cobra.CheckErr(err)
		messages, err := s.GetMessages(ctx, id)
		cobra.CheckErr(err)

		withMetadata, _ := cmd.Flags().GetBool("with-metadata")
		renderer := &render.Renderer{WithMetadata: withMetadata}
		transcript, err := renderer.Transcript(meta, messages)
		cobra.CheckErr(err)

		dir, _ := cmd.Flags().GetString("dir")
		path := filepath.Join(dir, render.ExportFilename(meta.Title, meta.StartedAt))
		cobra.CheckErr(os.WriteFile(path, []byte(transcript), 0o644))
		fmt.Println(path)
	},
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete CONVERSATION",
	Short: "Delete a conversation and all its messages",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		id, err := conversation.ParseConversationID(args[0])
		cobra.CheckErr(err)

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			meta, err := s.GetConversationMetadata(ctx, id)
			cobra.CheckErr(err)
			title := meta.Title
			if title == "" {
				title = conversation.PlaceholderTitle
			}
			ok, err := confirm(fmt.Sprintf("Delete %q and all its messages?", title))
			cobra.CheckErr(err)
			if !ok {
				return
			}
		}

		err = withEvents(ctx, func(ctx context.Context, manager *events.PublisherManager) error {
			if err := s.DeleteConversation(ctx, id); err != nil {
				return err
			}
			manager.PublishBlind(events.NewConversationDeletedEvent(id))
			return nil
		})
		cobra.CheckErr(err)
		fmt.Println("Deleted conversation", id)
	},
}

var chatsConfigureCmd = &cobra.Command{
	Use:   "configure CONVERSATION",
	Short: "Change a conversation's title, instruction, context paths or generation settings",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		id, err := conversation.ParseConversationID(args[0])
		cobra.CheckErr(err)

		meta, err := s.GetConversationMetadata(ctx, id)
		cobra.CheckErr(err)

		update, err := metadataUpdateFromFlags(ctx, cmd, s, meta)
		cobra.CheckErr(err)
		if update.IsZero() {
			fmt.Println("Nothing to change")
			return
		}

		err = withEvents(ctx, func(ctx context.Context, manager *events.PublisherManager) error {
			if err := s.UpdateConversationMetadata(ctx, id, update); err != nil {
				return err
			}
			manager.PublishBlind(events.NewMetadataUpdatedEvent(id))
			return nil
		})
		cobra.CheckErr(err)
		fmt.Println("Updated conversation", id)
	},
}

// registerChatSettingsFlags adds the flags shared by every command
// that writes conversation metadata.
func registerChatSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Conversation title")
	cmd.Flags().String("instruction", "", "Name of a saved system instruction to use")
	cmd.Flags().String("instruction-text", "", "System instruction text")
	cmd.Flags().Bool("clear-instruction", false, "Remove the system instruction")
	cmd.Flags().String("config-file", "", "YAML file with generation settings")
	cmd.Flags().StringArray("add-path", nil, "File or directory to add to the context (repeatable)")
	cmd.Flags().StringArray("remove-path", nil, "Context path to remove (repeatable)")
	cmd.Flags().StringArray("exclude-file", nil, "Single file to exclude from the context (repeatable)")
	cmd.Flags().StringArray("include-file", nil, "File exclusion to lift (repeatable)")
}

// metadataUpdateFromFlags builds a partial metadata update from the
// shared chat settings flags. current supplies the path sets that
// --add-path and friends modify; nil starts from empty sets.
func metadataUpdateFromFlags(ctx context.Context, cmd *cobra.Command, s *store.Store, current *conversation.Metadata) (conversation.MetadataUpdate, error) {
	update := conversation.MetadataUpdate{}

	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		update.Title = &title
	}

	instructionName, _ := cmd.Flags().GetString("instruction")
	instructionText, _ := cmd.Flags().GetString("instruction-text")
	clearInstruction, _ := cmd.Flags().GetBool("clear-instruction")
	switch {
	case clearInstruction:
		empty := ""
		update.SystemInstruction = &empty
	case instructionName != "" || instructionText != "":
		instruction, err := resolveInstruction(ctx, s, instructionName, instructionText)
		if err != nil {
			return update, err
		}
		update.SystemInstruction = &instruction
	}

	if configFile, _ := cmd.Flags().GetString("config-file"); configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return update, errors.Wrap(err, "could not read generation config")
		}
		config, err := conversation.ParseConfigFile(data)
		if err != nil {
			return update, err
		}
		update.GenerationConfig = config
	}

	addPaths, _ := cmd.Flags().GetStringArray("add-path")
	removePaths, _ := cmd.Flags().GetStringArray("remove-path")
	if len(addPaths)+len(removePaths) > 0 {
		included := conversation.NewPathSet()
		if current != nil {
			included = current.IncludedPaths.Clone()
		}
		if err := mutatePathSet(included, addPaths, removePaths); err != nil {
			return update, err
		}
		update.IncludedPaths = &included
	}

	excludeFiles, _ := cmd.Flags().GetStringArray("exclude-file")
	includeFiles, _ := cmd.Flags().GetStringArray("include-file")
	if len(excludeFiles)+len(includeFiles) > 0 {
		excluded := conversation.NewPathSet()
		if current != nil {
			excluded = current.ExcludedFiles.Clone()
		}
		if err := mutatePathSet(excluded, excludeFiles, includeFiles); err != nil {
			return update, err
		}
		update.ExcludedFiles = &excluded
	}

	return update, nil
}

// mutatePathSet resolves each path to an absolute one so set entries
// line up with what the assembler records.
func mutatePathSet(set conversation.PathSet, add, remove []string) error {
	for _, p := range add {
		abs, err := filepath.Abs(p)
		if err != nil {
			return errors.Wrapf(err, "could not resolve %s", p)
		}
		set.Add(abs)
	}
	for _, p := range remove {
		abs, err := filepath.Abs(p)
		if err != nil {
			return errors.Wrapf(err, "could not resolve %s", p)
		}
		set.Remove(abs)
	}
	return nil
}

func init() {
	chatsListCmd.Flags().Int("limit", store.DefaultRecentLimit, "Number of conversations to list")
	chatsListCmd.Flags().String("filter", "", "Only list titles matching a glob pattern")

	registerChatSettingsFlags(chatsNewCmd)
	registerChatSettingsFlags(chatsConfigureCmd)

	chatsShowCmd.Flags().Bool("with-metadata", false, "Annotate messages with model and context files")
	chatsShowCmd.Flags().Bool("plain", false, "Skip terminal styling")
	chatsShowCmd.Flags().String("style", render.DefaultStyle, "Glamour style for terminal output")

	chatsExportCmd.Flags().Bool("with-metadata", false, "Annotate messages with model and context files")
	chatsExportCmd.Flags().String("dir", ".", "Directory the transcript is written to")

	chatsDeleteCmd.Flags().Bool("force", false, "Skip the confirmation prompt")

	ChatsCmd.AddCommand(chatsListCmd)
	ChatsCmd.AddCommand(chatsNewCmd)
	ChatsCmd.AddCommand(chatsShowCmd)
	ChatsCmd.AddCommand(chatsExportCmd)
	ChatsCmd.AddCommand(chatsDeleteCmd)
	ChatsCmd.AddCommand(chatsConfigureCmd)
}
