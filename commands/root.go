package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voice-gated-assistant/config"
	"voice-gated-assistant/logger"
)

var (
	cfgFile string
	envFile string
	verbose bool

	globalConfig *config.Config
	appLogger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "voice-gated-assistant",
	Short: "Voice-gated command assistant",
	Long: `Listens on the microphone, waits for the speaker to finish, checks the
voice against the enrolled signature and only then forwards the recognized
command to the command bot.

Examples:
  # Record the authorized speaker
  voice-gated-assistant enroll

  # Suggest an activity threshold for this room
  voice-gated-assistant calibrate

  # Run the assistant
  voice-gated-assistant --config config.yaml listen`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if appLogger != nil {
			_ = appLogger.Sync()
		}
	},
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with VGA_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(devicesCmd)
}

func setup(*cobra.Command, []string) error {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return err
	}

	if verbose {
		cfg.Log.Level = "debug"
	}

	lg, err := logger.Init(&cfg.Log, cfg.Mode)
	if err != nil {
		return err
	}

	globalConfig = cfg
	appLogger = lg

	return nil
}
