package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nikitkaralius/pollmate/internal/config"
)

// AppVersion is overridden at build time with -ldflags.
var AppVersion = "dev"

var settings = config.New()

var rootCmd = &cobra.Command{
	Use:           "pollmate",
	Short:         "Conversational poll assistant",
	Long:          "pollmate lets admins run polls and users vote on them by chatting with an LLM.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	rootCmd.PersistentFlags().String("config", "", "Path to settings file (default ./settings.toml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("dsn", "", "Postgres DB DSN")
	_ = settings.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = settings.BindPFlag("storage.database_url", rootCmd.PersistentFlags().Lookup("dsn"))

	rootCmd.AddCommand(serveCmd, migrateCmd, chatCmd)
}

// loadConfig reads settings for a command and applies the global logging and display options.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(settings, path)
	if err != nil {
		return config.Config{}, err
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("pollmate exited with an error")
	}
}
