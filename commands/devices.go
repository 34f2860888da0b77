package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"voice-gated-assistant/audio_capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		device := audio_capture.NewPortAudioDevice(appLogger.Named("portaudio"))
		if err := device.Init(); err != nil {
			return err
		}
		defer device.Close()

		infos, err := device.ListDevices()
		if err != nil {
			return err
		}

		for _, info := range infos {
			marker := " "
			if info.Default {
				marker = "*"
			}

			fmt.Printf("%s %2d  %-40s  %d ch  %.0f Hz\n",
				marker, info.Index, info.Name, info.MaxInputChannels, info.DefaultSampleRate)
		}

		return nil
	},
}
