package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/grillo/pkg/tokens"
)

var TokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Count tokens with the local tokenizer",
}

var tokensCountCmd = &cobra.Command{
	Use:   "count [text...]",
	Short: "Count the tokens in a piece of text, - or no argument for stdin",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		var text string
		if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
			data, err := io.ReadAll(os.Stdin)
			cobra.CheckErr(err)
			text = string(data)
		} else {
			text = strings.Join(args, " ")
		}

		counter := tokens.NewTiktokenCounter()
		count, err := counter.CountTokens(ctx, viper.GetString("model"), text)
		cobra.CheckErr(err)
		fmt.Println(count)
	},
}

func init() {
	TokensCmd.AddCommand(tokensCountCmd)
}
