package cmds

import (
	"fmt"

	"github.com/mb0/glob"
	"github.com/spf13/cobra"
)

var InstructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Manage saved system instructions",
}

var instructionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved instruction names",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		pattern, _ := cmd.Flags().GetString("filter")

		names, err := s.ListInstructionNames(ctx)
		cobra.CheckErr(err)
		for _, name := range names {
			if pattern != "" {
				matched, err := glob.Match(pattern, name)
				cobra.CheckErr(err)
				if !matched {
					continue
				}
			}
			fmt.Println(name)
		}
	},
}

var instructionsGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print a saved instruction",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		text, err := s.GetInstruction(ctx, args[0])
		cobra.CheckErr(err)
		fmt.Println(text)
	},
}

var instructionsSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Save or overwrite an instruction",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		text, err := contentFromFlags(cmd)
		cobra.CheckErr(err)

		cobra.CheckErr(s.SaveInstruction(ctx, args[0], text))
		fmt.Println("Saved instruction", args[0])
	},
}

var instructionsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a saved instruction",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		cobra.CheckErr(s.DeleteInstruction(ctx, args[0]))
		fmt.Println("Deleted instruction", args[0])
	},
}

func init() {
	instructionsListCmd.Flags().String("filter", "", "Only list names matching a glob pattern")

	instructionsSetCmd.Flags().String("content", "", "Instruction text")
	instructionsSetCmd.Flags().String("content-file", "", "Read the instruction from a file, - for stdin")

	InstructionsCmd.AddCommand(instructionsListCmd)
	InstructionsCmd.AddCommand(instructionsGetCmd)
	InstructionsCmd.AddCommand(instructionsSetCmd)
	InstructionsCmd.AddCommand(instructionsDeleteCmd)
}
