package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-g1/pkg/app"
)

var (
	flagMode   string
	flagNoIdle bool
	flagStream bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conversation orchestrator",
	Long: `Run the orchestrator: the event loop, speech queue, thinker, idle
scheduler and the web control surface.

Utterances arrive from the streaming recognizer (ASR_URL). Director commands
arrive from the control surface.

Example:
  g1 run --mode director --config g1.yaml`,
	RunE: runOrchestrator,
}

func init() {
	runCmd.Flags().StringVar(&flagMode, "mode", "", "initial mode: auto or director")
	runCmd.Flags().BoolVar(&flagNoIdle, "no-idle", false, "disable idle chatter")
	runCmd.Flags().BoolVar(&flagStream, "stream", false, "speak replies sentence by sentence while streaming")
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagMode != "" {
		cfg.Loop.Mode = flagMode
	}
	if flagNoIdle {
		cfg.Idle.Enabled = false
	}
	if flagStream {
		cfg.LLM.StreamReplies = true
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.Run(ctx)
}
