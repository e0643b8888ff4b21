package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

var SettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage stored settings such as the api_key used for generation",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print a setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		value, err := s.GetSetting(ctx, args[0])
		cobra.CheckErr(err)
		fmt.Println(value)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Save a setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		cobra.CheckErr(s.SetSetting(ctx, args[0], args[1]))
		fmt.Println("Saved setting", args[0])
	},
}

var settingsDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete a setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		s, err := openStore()
		cobra.CheckErr(err)
		defer func() { _ = s.Close() }()

		cobra.CheckErr(s.DeleteSetting(ctx, args[0]))
		fmt.Println("Deleted setting", args[0])
	},
}

func init() {
	SettingsCmd.AddCommand(settingsGetCmd)
	SettingsCmd.AddCommand(settingsSetCmd)
	SettingsCmd.AddCommand(settingsDeleteCmd)
}
