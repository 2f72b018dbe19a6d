package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/device"
	"github.com/teslashibe/go-g1/pkg/dispatch"
	"github.com/teslashibe/go-g1/pkg/executor"
)

var (
	flagAddr string
	flagSim  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the robot-side executor",
	Long: `Run the executor HTTP server that fronts the robot's audio, arm and
locomotion clients.

Endpoints: POST /cmd/speak, /cmd/play_wav, /cmd/stop, /cmd/action and
GET /status.

Example:
  g1 serve --sim --addr :6000`,
	RunE: runExecutor,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&flagSim, "sim", false, "use the simulated device")
}

func runExecutor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Executor.Addr = flagAddr
	}
	if !flagSim {
		return errors.New("no robot SDK binding is linked into this build; use --sim")
	}

	srv, err := executor.New(executor.Config{
		Addr:         cfg.Executor.Addr,
		UploadDir:    cfg.Executor.UploadDir,
		StopChannels: cfg.Executor.StopChannels,
		Volume:       cfg.Executor.Volume,
		DispatchOptions: []dispatch.Option{
			dispatch.WithTimings(cfg.Executor.ReleaseDelay, dispatch.DefaultSettlePause, dispatch.DefaultShakeHold),
		},
	}, device.NewSim(log.Component("sim")))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			log.Warn("executor shutdown", "error", err)
		}
	}()
	return srv.Start(ctx)
}
