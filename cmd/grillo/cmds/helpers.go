// Package cmds holds the grillo subcommands. Each command opens the
// store itself so the binary stays usable without a running daemon or
// a prior init step.
package cmds

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/grillo/pkg/actions"
	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/events"
	"github.com/go-go-golems/grillo/pkg/filecontext"
	"github.com/go-go-golems/grillo/pkg/generate"
	"github.com/go-go-golems/grillo/pkg/store"
)

// openStore opens the database selected through --db or GRILLO_DB,
// defaulting to ~/.grillo/chat_history.db. The parent directory is
// created on first use.
func openStore() (*store.Store, error) {
	path, err := databasePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "could not create database directory")
	}
	return store.New(path)
}

func databasePath() (string, error) {
	if path := viper.GetString("db"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not resolve home directory")
	}
	return filepath.Join(home, ".grillo", "chat_history.db"), nil
}

// newClient builds the generation client selected through --backend.
// The OpenAI key is taken from the flag or environment first, then
// from the api_key setting stored in the database.
func newClient(ctx context.Context, s *store.Store) (generate.Client, error) {
	switch backend := viper.GetString("backend"); backend {
	case "openai":
		apiKey := viper.GetString("openai-api-key")
		if apiKey == "" {
			stored, err := s.GetSetting(ctx, store.SettingAPIKey)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			apiKey = stored
		}
		if apiKey == "" {
			return nil, errors.New("no OpenAI API key: pass --openai-api-key or run 'grillo settings set api_key <key>'")
		}
		var options []generate.OpenAIOption
		if baseURL := viper.GetString("openai-base-url"); baseURL != "" {
			options = append(options, generate.WithBaseURL(baseURL))
		}
		return generate.NewOpenAIClient(apiKey, options...), nil
	case "ollama":
		return generate.NewOllamaClient()
	default:
		return nil, errors.Errorf("unknown backend %s", backend)
	}
}

// loadSession assembles the action session for a conversation from its
// stored metadata and the globally selected model.
func loadSession(ctx context.Context, s *store.Store, id conversation.ConversationID) (*actions.Session, *conversation.Metadata, error) {
	meta, err := s.GetConversationMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	config := meta.GenerationConfig
	if config == nil {
		config = conversation.NewGenerationConfig()
	}
	session := &actions.Session{
		ConversationID:    id,
		Model:             viper.GetString("model"),
		Config:            config,
		SystemInstruction: meta.SystemInstruction,
	}
	return session, meta, nil
}

// messageSession resolves a message id to its owning conversation and
// builds the session for it.
func messageSession(ctx context.Context, s *store.Store, raw string) (*actions.Session, *conversation.Metadata, *conversation.Message, error) {
	id, err := parseMessageID(raw)
	if err != nil {
		return nil, nil, nil, err
	}
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	session, meta, err := loadSession(ctx, s, msg.ConversationID)
	if err != nil {
		return nil, nil, nil, err
	}
	return session, meta, msg, nil
}

func parseMessageID(raw string) (conversation.MessageID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid message id %s", raw)
	}
	return conversation.MessageID(id), nil
}

// assembledContext is the file context of one conversation, gathered
// once and shared between prompt assembly, token estimates and the
// diagnostic listing.
type assembledContext struct {
	Text     string
	Files    []string
	Contents map[string]string
	Diags    []filecontext.Diagnostic
}

func buildContext(ctx context.Context, meta *conversation.Metadata) (*assembledContext, error) {
	built := &assembledContext{}
	if meta.IncludedPaths.Len() == 0 {
		return built, nil
	}

	assembler := filecontext.NewAssembler(filecontext.NewFilter())
	contents, diags, err := assembler.Build(ctx, meta.IncludedPaths, meta.ExcludedFiles)
	if err != nil {
		return nil, err
	}

	built.Contents = contents
	built.Diags = diags
	built.Text = filecontext.Format(contents, meta.IncludedPaths)
	for path := range contents {
		built.Files = append(built.Files, path)
	}
	sort.Strings(built.Files)
	return built, nil
}

// withEvents runs fn with an event publisher. Under --verbose the
// events are dumped to stdout through a router running for the span of
// fn; otherwise the publisher has no subscribers and publishing is a
// no-op.
func withEvents(ctx context.Context, fn func(ctx context.Context, manager *events.PublisherManager) error) error {
	manager := events.NewPublisherManager()
	if !viper.GetBool("verbose") {
		return fn(ctx, manager)
	}

	router, err := events.NewEventRouter(events.WithVerbose(true))
	if err != nil {
		return err
	}
	defer func() { _ = router.Close() }()

	router.AddHandler("raw-events", events.TopicChat, router.DumpRawEvents)
	manager.SubscribePublisher(events.TopicChat, router.Publisher)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg := errgroup.Group{}
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()
		return fn(ctx, manager)
	})
	return eg.Wait()
}

// confirm asks a yes/no question on the terminal, defaulting to no.
func confirm(question string) (bool, error) {
	ui := &input.UI{
		Writer: os.Stdout,
		Reader: os.Stdin,
	}
	answer, err := ui.Ask(question+" [y/n]", &input.Options{
		Default:  "n",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N":
				return nil
			default:
				return errors.New("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "Y", nil
}

// contentFromFlags resolves text from --content or --content-file,
// where "-" reads stdin.
func contentFromFlags(cmd *cobra.Command) (string, error) {
	content, _ := cmd.Flags().GetString("content")
	file, _ := cmd.Flags().GetString("content-file")
	switch {
	case content != "" && file != "":
		return "", errors.New("--content and --content-file are mutually exclusive")
	case content != "":
		return content, nil
	case file == "":
		return "", errors.New("pass the new content with --content or --content-file")
	}

	if file == "-" {
		file = "/dev/stdin"
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", errors.Wrap(err, "could not read content file")
	}
	return string(data), nil
}

func resolveInstruction(ctx context.Context, s *store.Store, name, text string) (string, error) {
	if name != "" && text != "" {
		return "", errors.New("--instruction and --instruction-text are mutually exclusive")
	}
	if name != "" {
		return s.GetInstruction(ctx, name)
	}
	return text, nil
}
