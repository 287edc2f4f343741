package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BuildInfo holds the build metadata injected at compile time.
type BuildInfo struct {
	Version string
	AppName string
}

type cmdFlags struct {
	version    string
	appName    string
	ConfigPath string `mapstructure:"config"`
	LogLevel   string `mapstructure:"log_level"`
	TextFormat bool   `mapstructure:"log_text"`
}

// InitCommand initializes the root command of the CLI application with its subcommands and flags.
func InitCommand(build BuildInfo) cobra.Command {
	flags := cmdFlags{
		version: build.Version,
		appName: build.AppName,
	}

	cmd := cobra.Command{
		Use:   flags.appName,
		Short: "Ranked full-text search over Bible translation resources",
		Long:  "bsearch serves ranked full-text queries over dynamically discovered Bible translation resources (scripture, notes, questions, words, academy articles), building an ephemeral index per request.",
	}

	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.TextFormat, "log-text", true, "log in text format, otherwise JSON")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to the configuration file (optional, env vars apply either way)")

	for _, name := range []string{"log_level", "log_text"} {
		if err := viper.BindEnv(name); err != nil {
			slog.Error("failed to bind env var", "name", name, "error", err)
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&flags); err != nil {
		slog.Error("failed to unmarshal env vars", "error", err)
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search API server",
		Long:  "Start the API server that answers /search queries over discovered translation resources.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunCommand(cmd.Context(), &flags)
		},
	}

	healthCmd := newHealthCmd()
	searchCmd := newSearchCmd(&flags)

	cmd.AddCommand(serveCmd, healthCmd, searchCmd)

	return cmd
}
