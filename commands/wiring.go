package commands

import (
	"context"
	"fmt"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/spf13/afero"

	"voice-gated-assistant/audio_capture"
	"voice-gated-assistant/config"
	"voice-gated-assistant/speaker_signature"
	"voice-gated-assistant/speaker_verification"
	"voice-gated-assistant/speech_to_text"
)

// openMicrophone initializes PortAudio and builds a capture on the default
// input device. The returned device must be closed by the caller.
func openMicrophone(cfg *config.Config) (audio_capture.Interface, *audio_capture.PortAudioDevice, error) {
	device := audio_capture.NewPortAudioDevice(appLogger.Named("portaudio"))
	if err := device.Init(); err != nil {
		return nil, nil, err
	}

	capture, err := audio_capture.New(&audio_capture.Config{
		Device:        device,
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      1,
		FrameDuration: cfg.Audio.FrameDuration,
		Latency:       audio_capture.Latency(cfg.Audio.Latency),
		Detector:      cfg.Endpoint,
		PreRollFrames: cfg.Audio.PreRollFrames,
		MaxDuration:   cfg.Audio.MaxDuration,
		QueueSize:     cfg.Audio.QueueSize,
		Logger:        appLogger.Named("audio_capture"),
	})
	if err != nil {
		_ = device.Close()

		return nil, nil, err
	}

	return capture, device, nil
}

func signatureStore(cfg *config.Config) (speaker_signature.Store, error) {
	return speaker_signature.NewStore(&speaker_signature.StoreConfig{
		FileSys:    afero.NewOsFs(),
		Path:       cfg.Signature.Path,
		SampleRate: cfg.Signature.SampleRate,
		Logger:     appLogger.Named("speaker_signature"),
	})
}

// signatureHolder loads the enrolled signature, if any, into a holder.
func signatureHolder(cfg *config.Config) (*speaker_signature.Holder, error) {
	store, err := signatureStore(cfg)
	if err != nil {
		return nil, err
	}

	holder, err := speaker_signature.NewHolder(&speaker_signature.HolderConfig{
		Store:     store,
		WatchPath: cfg.Signature.Path,
		Logger:    appLogger.Named("speaker_signature"),
	})
	if err != nil {
		return nil, err
	}

	if err = holder.Reload(); err != nil {
		return nil, err
	}

	return holder, nil
}

func newVerifier(cfg *config.Config, signatures speaker_verification.SignatureSource) (speaker_verification.Interface, error) {
	return speaker_verification.New(&speaker_verification.Config{
		Signatures: signatures,
		Threshold:  cfg.Verification.Threshold,
		Scoring:    cfg.Verification.Scoring,
		Logger:     appLogger.Named("speaker_verification"),
	})
}

// newTranscriber returns the configured engine and a function releasing it.
func newTranscriber(ctx context.Context, cfg *config.Config) (speech_to_text.Interface, func(), error) {
	switch cfg.Transcription.Engine {
	case config.EngineWhisper:
		model, err := whisper.New(cfg.Transcription.WhisperModel)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading model: %w", err)
		}

		engine, err := speech_to_text.NewWhisper(&speech_to_text.WhisperConfig{
			Model:    model,
			Language: cfg.Transcription.WhisperLanguage,
			Logger:   appLogger.Named("speech_to_text"),
		})
		if err != nil {
			_ = model.Close()

			return nil, nil, err
		}

		return engine, func() { _ = model.Close() }, nil
	default:
		engine, err := speech_to_text.NewGoogle(ctx, &speech_to_text.GoogleConfig{
			LanguageCode:    cfg.Transcription.LanguageCode,
			CredentialsFile: cfg.Transcription.CredentialsFile,
			Logger:          appLogger.Named("speech_to_text"),
		})
		if err != nil {
			return nil, nil, err
		}

		return engine, func() { _ = engine.Close() }, nil
	}
}
