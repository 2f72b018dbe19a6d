package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/robot"
)

var playCmd = &cobra.Command{
	Use:   "play <file.wav>",
	Short: "Convert a WAV file to robot format and play it",
	Long: `Convert a WAV file to 16 kHz mono 16-bit PCM and upload it to the
executor, which plays it immediately and preempts any current speech.

Example:
  g1 play greeting.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w, err := audioio.ReadWAVFile(args[0])
	if err != nil {
		return err
	}
	if !w.IsRobotFormat() {
		log.Info("converting", "rate", w.SampleRate, "channels", w.Channels)
		w = audioio.ToRobotFormat(w)
	}

	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + ".wav"
	t := robot.NewHTTPTransport(cfg.Robot.ServerURL, log.Component("play"))
	if err := t.UploadAudio(cmd.Context(), name, audioio.Encode(w)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "playing %s (%s)\n", name, w.Duration().Round(100*time.Millisecond))
	return nil
}
