package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/tokens"
)

var ContextCmd = &cobra.Command{
	Use:   "context",
	Short: "Inspect the file context a conversation sends with each prompt",
}

var contextPreviewCmd = &cobra.Command{
	Use:   "preview CONVERSATION",
	Short: "Print the formatted file context",
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

		built, err := buildContext(ctx, meta)
		cobra.CheckErr(err)
		if built.Text == "" {
			fmt.Println("No file context configured")
			return
		}
		fmt.Print(built.Text)
	},
}

var contextFilesCmd = &cobra.Command{
	Use:   "files CONVERSATION",
	Short: "List every considered file and why it was included or skipped",
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

		built, err := buildContext(ctx, meta)
		cobra.CheckErr(err)
		if len(built.Diags) == 0 {
			fmt.Println("No file context configured")
			return
		}
		for _, d := range built.Diags {
			line := fmt.Sprintf("%-16s %s", d.Status, d.Path)
			if d.Detail != "" {
				line += " (" + d.Detail + ")"
			}
			fmt.Println(line)
		}
	},
}

var contextTokensCmd = &cobra.Command{
	Use:   "tokens CONVERSATION",
	Short: "Estimate the prompt overhead of the instruction and file context",
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

		built, err := buildContext(ctx, meta)
		cobra.CheckErr(err)

		budgeter := tokens.NewBudgeter(tokens.NewTiktokenCounter())
		count, err := budgeter.Estimate(ctx, viper.GetString("model"), meta.SystemInstruction, built.Contents, meta.IncludedPaths)
		cobra.CheckErr(err)
		fmt.Println(count)
	},
}

func init() {
	ContextCmd.AddCommand(contextPreviewCmd)
	ContextCmd.AddCommand(contextFilesCmd)
	ContextCmd.AddCommand(contextTokensCmd)
}
