package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand returns the command tree and a cleanup that releases whatever
// the commands opened, whether or not they succeeded.
func newRootCommand() (*cobra.Command, func()) {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "videonote",
		Short:         "Transcribe audio and video into subtitles and notes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Data directory (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newModelsCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))
	rootCmd.AddCommand(newNoteCommand(ctx))

	return rootCmd, ctx.close
}
