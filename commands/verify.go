package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"voice-gated-assistant/utterance"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file.wav>...",
	Short: "Score recorded WAV files against the enrolled signature",
	Long: `Runs the speaker verifier on 16-bit mono WAV files without touching the
microphone. Useful for choosing a threshold.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig

		holder, err := signatureHolder(cfg)
		if err != nil {
			return err
		}

		if holder.Current() == nil {
			return fmt.Errorf("no signature enrolled at %s", cfg.Signature.Path)
		}

		verifier, err := newVerifier(cfg, holder)
		if err != nil {
			return err
		}

		fileSys := afero.NewOsFs()

		for _, path := range args {
			u, err := decodeFile(fileSys, path)
			if err != nil {
				return err
			}

			d := verifier.Verify(u)

			verdict := "rejected"
			if d.Accepted {
				verdict = "accepted"
			}

			fmt.Printf("%s: %s (%s) time=%.3f frequency=%.3f final=%.3f",
				path, verdict, d.Outcome, d.Score.Time, d.Score.Frequency, d.Score.Final)

			if d.Err != nil {
				fmt.Printf(" error=%v", d.Err)
			}

			fmt.Println()
		}

		return nil
	},
}

func decodeFile(fileSys afero.Fs, path string) (*utterance.Utterance, error) {
	f, err := fileSys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	u, err := utterance.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return u, nil
}
