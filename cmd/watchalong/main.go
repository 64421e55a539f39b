// Command watchalong runs a chat bot that remote-controls a logged-in
// streaming session in a headless browser.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"watchalong/internal/config"
	"watchalong/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "watchalong",
	Short: "Watch a streaming session together from chat",
	Long: `watchalong drives a headless browser logged into a streaming site and
exposes it through chat commands: search the catalog, page through results,
play a title, pause, switch audio or subtitles, and relay the session into a
voice channel.

Run without arguments to start the bot.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.Initialize(cfg.Logging.Options(), verbose)
		if err != nil {
			return err
		}
		logging.Boot("config loaded from %s", configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the browser session and the chat bot",
	Long: `Launches (or attaches to) Chrome, logs into the streaming site, connects
to Discord and serves commands until interrupted.

Credentials come from the config file or DISCORD_TOKEN, WATCHALONG_EMAIL and
WATCHALONG_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "watchalong.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(selectorsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
