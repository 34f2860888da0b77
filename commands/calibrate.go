package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voice-gated-assistant/endpoint_detection"
)

var (
	calibrateDuration time.Duration
	calibrateHeadroom float64
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Suggest an activity threshold from the room's background noise",
	Long: `Records the room while nobody speaks and prints a suggested
endpoint.min_volume: the loudest ambient frame energy times the headroom.
The suggestion is never written to the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		capture, device, err := openMicrophone(cfg)
		if err != nil {
			return err
		}
		defer device.Close()

		fmt.Printf("Stay quiet for %s...\n", calibrateDuration)

		u, err := capture.Record(ctx, calibrateDuration)
		if err != nil {
			return err
		}

		frameSize := int(float64(cfg.Audio.SampleRate) * cfg.Audio.FrameDuration.Seconds())
		frames := endpoint_detection.SplitFrames(u.Float32s(), frameSize)
		suggested := endpoint_detection.Calibrate(frames, calibrateHeadroom)

		fmt.Printf("Current endpoint.min_volume: %g\n", cfg.Endpoint.MinVolume)
		fmt.Printf("Suggested endpoint.min_volume: %g\n", suggested)

		return nil
	},
}

func init() {
	calibrateCmd.Flags().DurationVar(&calibrateDuration, "duration", 3*time.Second, "how long to sample the room")
	calibrateCmd.Flags().Float64Var(&calibrateHeadroom, "headroom", endpoint_detection.DefaultCalibrationHeadroom, "multiplier over the loudest ambient frame")
}
