package cmds

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/grillo/pkg/doc"
	"github.com/go-go-golems/grillo/pkg/render"
)

var DocsCmd = &cobra.Command{
	Use:   "docs [topic]",
	Short: "Show built-in documentation, without an argument list the topics",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			topics, err := doc.Topics()
			cobra.CheckErr(err)
			for _, topic := range topics {
				fmt.Printf("%-24s %s\n", topic.Slug, topic.Title)
			}
			return
		}

		topic, err := doc.Get(args[0])
		cobra.CheckErr(err)

		if isatty.IsTerminal(os.Stdout.Fd()) {
			styled, err := render.Styled(topic.Body, render.DefaultStyle)
			cobra.CheckErr(err)
			fmt.Print(styled)
			return
		}
		fmt.Print(topic.Body)
	},
}
