package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voice-gated-assistant/utterance"
)

var (
	enrollSamples  int
	enrollDuration time.Duration
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Record the authorized speaker and save the voice signature",
	Long: `Records several fixed-length samples of the speaker, averages them and
replaces the stored signature. Speak the same phrase for every sample.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig

		samples := cfg.Signature.EnrollSamples
		if cmd.Flags().Changed("samples") {
			samples = enrollSamples
		}

		duration := cfg.Signature.EnrollDuration
		if cmd.Flags().Changed("duration") {
			duration = enrollDuration
		}

		if samples <= 0 || duration <= 0 {
			return fmt.Errorf("samples and duration must be positive")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		holder, err := signatureHolder(cfg)
		if err != nil {
			return err
		}

		capture, device, err := openMicrophone(cfg)
		if err != nil {
			return err
		}
		defer device.Close()

		utts := make([]*utterance.Utterance, 0, samples)

		for i := 1; i <= samples; i++ {
			fmt.Printf("Sample %d of %d: speak now for %s...\n", i, samples, duration)

			u, err := capture.Record(ctx, duration)
			if err != nil {
				return fmt.Errorf("record sample %d: %w", i, err)
			}

			utts = append(utts, u)
		}

		sig, err := holder.Enroll(utts)
		if err != nil {
			return err
		}

		appLogger.Info("speaker enrolled",
			zap.String("path", cfg.Signature.Path),
			zap.Int("samples", sig.Len()))

		fmt.Printf("Voice signature saved to %s.\n", cfg.Signature.Path)

		return nil
	},
}

func init() {
	enrollCmd.Flags().IntVar(&enrollSamples, "samples", 3, "number of recordings to average")
	enrollCmd.Flags().DurationVar(&enrollDuration, "duration", 5*time.Second, "length of each recording")
}
