package commands

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-g1/internal/config"
	"github.com/teslashibe/go-g1/internal/log"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "g1",
	Short: "Real-time interaction orchestrator for the G1 humanoid",
	Long: `g1 drives a humanoid robot through spoken conversation.

Two processes cooperate:
  - g1 run    the orchestrator: listens, thinks, speaks and gestures
  - g1 serve  the executor on the robot: speech, audio playback and motions

Examples:
  # Start the executor on the robot (simulated device)
  g1 serve --sim

  # Start the orchestrator against it
  OPENAI_API_KEY=sk-... ROBOT_SERVER_URL=http://robot:6000 g1 run

  # Upload and play a recording
  g1 play hello.wav`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root command so it can be mounted elsewhere.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(actionsCmd)
}

// loadConfig reads configuration and initializes logging.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}
