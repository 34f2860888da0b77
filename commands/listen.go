package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voice-gated-assistant/clients/command_bot"
	"voice-gated-assistant/pipeline"
)

var (
	wakePhrase string
	recordDir  string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Listen for verified commands until an exit word",
	Long: `Captures one utterance at a time, transcribes it, verifies the speaker and
forwards accepted commands to the command bot. Saying one of the configured
exit words ends the session. Without an enrolled signature every speaker is
accepted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig

		if cfg.Dispatcher.APIHost == "" {
			return fmt.Errorf("dispatcher.api_host is not set (or VGA_DISPATCHER_API_HOST)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		holder, err := signatureHolder(cfg)
		if err != nil {
			return err
		}

		if holder.Current() == nil {
			appLogger.Warn("no signature enrolled, every speaker will be accepted")
		}

		if cfg.Signature.Watch {
			go func() {
				if err := holder.Watch(ctx); err != nil {
					appLogger.Error("signature watch stopped", zap.Error(err))
				}
			}()
		}

		verifier, err := newVerifier(cfg, holder)
		if err != nil {
			return err
		}

		sttEngine, release, err := newTranscriber(ctx, cfg)
		if err != nil {
			return err
		}
		defer release()

		bot, err := command_bot.NewClient(&command_bot.Config{
			ApiHost: cfg.Dispatcher.APIHost,
			Timeout: cfg.Dispatcher.Timeout,
			Logger:  appLogger.Named("command_bot"),
		})
		if err != nil {
			return err
		}

		capture, device, err := openMicrophone(cfg)
		if err != nil {
			return err
		}
		defer device.Close()

		p, err := pipeline.New(&pipeline.Config{
			Capture:    capture,
			STTEngine:  sttEngine,
			Verifier:   verifier,
			CommandBot: bot,
			ExitWords:  cfg.Pipeline.ExitWords,
			WakePhrase: wakePhrase,
			OnOutcome:  handleOutcome,
			Logger:     appLogger.Named("pipeline"),
		})
		if err != nil {
			return err
		}

		err = p.ListenLoop(ctx)
		if err != nil && ctx.Err() != nil {
			// interrupted by a signal
			return nil
		}

		return err
	},
}

func init() {
	listenCmd.Flags().StringVar(&wakePhrase, "wake-phrase", "", `phrase required before each command, e.g. "hey smart home"`)
	listenCmd.Flags().StringVar(&recordDir, "record-dir", "", "directory to archive every captured utterance as WAV")
}

func handleOutcome(out *pipeline.Outcome) {
	if recordDir != "" && out.Utterance != nil {
		path := filepath.Join(recordDir, out.UtteranceID+".wav")
		if err := out.Utterance.SaveWAV(afero.NewOsFs(), path); err != nil {
			appLogger.Error("could not archive utterance", zap.String("path", path), zap.Error(err))
		}
	}

	printOutcome(out)
}

func printOutcome(out *pipeline.Outcome) {
	switch out.Kind {
	case pipeline.KindUnrecognized:
		fmt.Println("Sorry, I did not catch that.")
	case pipeline.KindRejected:
		fmt.Println("Voice not recognized.")
	case pipeline.KindWake:
		fmt.Println("Listening for a command...")
	case pipeline.KindDispatched:
		fmt.Println(out.Reply)
	case pipeline.KindDispatchFailed:
		fmt.Println("The command could not be delivered.")
	case pipeline.KindExit:
		fmt.Println("Goodbye.")
	}
}
