package cli

import (
	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advisor",
		Short: "Storefront AI advisor orchestration",
		Long:  "advisor serves the conversation, persona and scene API a home-improvement storefront talks to.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			dotenv := []string{paths.DotEnv, ".env"}
			if envFile != "" {
				dotenv = []string{envFile}
			}
			if err := config.LoadDotEnv(dotenv...); err != nil {
				return err
			}
			log = newLogger()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.advisor/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load instead of ~/.advisor/.env and ./.env")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newPersonasCmd())
	cmd.AddCommand(newSummariesCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// newLogger honours --log-level first, then the config file. A broken
// config still yields a logger so the command can report the problem.
func newLogger() *logging.Logger {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		cfg = config.Defaults()
	}
	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	return logging.NewStyled(cfg.Logging.ConsoleStyle, level)
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
