package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/grillo/cmd/grillo/cmds"
)

var rootCmd = &cobra.Command{
	Use:   "grillo",
	Short: "grillo keeps LLM chat sessions in a local SQLite database",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// flags have been parsed into viper at this point, so the
		// logger settings from the command line take effect here
		err := initLogger()
		cobra.CheckErr(err)
	},
}

func initLogger() error {
	logLevel := viper.GetString("log-level")
	if viper.GetBool("verbose") && logLevel == "info" {
		logLevel = "debug"
	}

	if viper.GetBool("with-caller") {
		log.Logger = log.With().Caller().Logger()
	}

	var writer io.Writer = os.Stderr
	if viper.GetString("log-format") == "text" {
		writer = zerolog.ConsoleWriter{
			Out:     os.Stderr,
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		}
	}

	if logFile := viper.GetString("log-file"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		writer = f
	}

	log.Logger = log.Output(writer)

	switch logLevel {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	}

	return nil
}

func initViper() error {
	viper.SetEnvPrefix("grillo")

	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.grillo")
	if dir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(dir, "grillo"))
	}

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	return viper.BindPFlags(rootCmd.PersistentFlags())
}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Path to the chat database (default ~/.grillo/chat_history.db)")
	rootCmd.PersistentFlags().String("backend", "openai", "Generation backend (openai, ollama)")
	rootCmd.PersistentFlags().String("model", "gpt-4", "Model used for generation")
	rootCmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key (falls back to the stored api_key setting)")
	rootCmd.PersistentFlags().String("openai-base-url", "", "Override the OpenAI API base URL")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Log to a file instead of stderr")
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller information")
	rootCmd.PersistentFlags().Bool("verbose", false, "Debug logging and raw event dumps")

	err := initViper()
	cobra.CheckErr(err)
	err = initLogger()
	cobra.CheckErr(err)

	rootCmd.AddCommand(cmds.ChatsCmd)
	rootCmd.AddCommand(cmds.MessagesCmd)
	rootCmd.AddCommand(cmds.SendCmd)
	rootCmd.AddCommand(cmds.InstructionsCmd)
	rootCmd.AddCommand(cmds.SettingsCmd)
	rootCmd.AddCommand(cmds.ContextCmd)
	rootCmd.AddCommand(cmds.TokensCmd)
	rootCmd.AddCommand(cmds.DocsCmd)

	_ = rootCmd.Execute()
}
