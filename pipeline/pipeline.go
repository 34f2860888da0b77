// Package pipeline wires capture, transcription, speaker verification and
// command dispatch into one listen cycle. A command only reaches the
// dispatcher after the verifier accepted the utterance it came from.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"voice-gated-assistant/audio_capture"
	"voice-gated-assistant/clients/command_bot"
	"voice-gated-assistant/speaker_verification"
	"voice-gated-assistant/speech_to_text"
	"voice-gated-assistant/utterance"
)

const defaultRetryDelay = time.Second

type Kind string

const (
	KindNoSpeech            Kind = "no_speech"
	KindCaptureFailed       Kind = "capture_failed"
	KindUnrecognized        Kind = "unrecognized"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindRejected            Kind = "rejected"
	KindExit                Kind = "exit"
	KindDispatched          Kind = "dispatched"
	KindDispatchFailed      Kind = "dispatch_failed"
	// KindWake and KindIgnored only occur while waiting for the wake phrase.
	KindWake    Kind = "wake"
	KindIgnored Kind = "ignored"
)

type ListenAction string

const (
	ListenActionWake    ListenAction = "wake"
	ListenActionCommand ListenAction = "command"
)

type Outcome struct {
	Kind        Kind
	UtteranceID string
	// Utterance is the captured clip, nil when nothing was captured.
	Utterance *utterance.Utterance
	Text        string
	Reply       string
	// Decision is set once verification ran.
	Decision *speaker_verification.Decision
	Err      error
}

type Config struct {
	Capture    audio_capture.Interface
	STTEngine  speech_to_text.Interface
	Verifier   speaker_verification.Interface
	CommandBot command_bot.CommandBotAPI
	// ExitWords end ListenLoop when a verified utterance is exactly one of
	// them, ignoring case and punctuation.
	ExitWords []string
	// WakePhrase, when set, must be heard before every command.
	WakePhrase string
	// RetryDelay is the pause after a failed capture.
	RetryDelay time.Duration
	// OnOutcome is called from ListenLoop after every cycle.
	OnOutcome func(*Outcome)
	Logger    *zap.Logger
}

type pipelineImpl struct {
	capture    audio_capture.Interface
	sttEngine  speech_to_text.Interface
	verifier   speaker_verification.Interface
	commandBot command_bot.CommandBotAPI
	exitWords  map[string]bool
	wakePhrase string
	retryDelay time.Duration
	onOutcome  func(*Outcome)
	logger     *zap.Logger

	mu              sync.Mutex
	triggeredAction ListenAction
	cancel          context.CancelFunc
	halted          bool
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Capture == nil {
		return nil, fmt.Errorf("capture is nil")
	}

	if cfg.STTEngine == nil {
		return nil, fmt.Errorf("sttEngine is nil")
	}

	if cfg.Verifier == nil {
		return nil, fmt.Errorf("verifier is nil")
	}

	if cfg.CommandBot == nil {
		return nil, fmt.Errorf("commandBot is nil")
	}

	exitWords := make(map[string]bool, len(cfg.ExitWords))
	for _, w := range cfg.ExitWords {
		if w = normalizeText(w); w != "" {
			exitWords[w] = true
		}
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L().Named("pipeline")
	}

	action := ListenActionCommand
	if normalizeText(cfg.WakePhrase) != "" {
		action = ListenActionWake
	}

	return &pipelineImpl{
		capture:         cfg.Capture,
		sttEngine:       cfg.STTEngine,
		verifier:        cfg.Verifier,
		commandBot:      cfg.CommandBot,
		exitWords:       exitWords,
		wakePhrase:      normalizeText(cfg.WakePhrase),
		retryDelay:      retryDelay,
		onOutcome:       cfg.OnOutcome,
		logger:          logger,
		triggeredAction: action,
	}, nil
}

func (p *pipelineImpl) ListenOnce(ctx context.Context) (*Outcome, error) {
	res, err := p.capture.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return &Outcome{Kind: KindCaptureFailed, Err: err}, nil
	}

	if res.Status == audio_capture.StatusNoSpeech {
		return &Outcome{Kind: KindNoSpeech}, nil
	}

	u := res.Utterance
	out := &Outcome{UtteranceID: u.ID(), Utterance: u}

	text, err := p.sttEngine.Transcribe(ctx, u)
	switch {
	case err == nil:
		out.Text = text
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, speech_to_text.ErrUnrecognized):
		out.Kind = KindUnrecognized

		return out, nil
	default:
		out.Kind = KindTranscriptionFailed
		out.Err = err

		return out, nil
	}

	if p.action() == ListenActionWake {
		if strings.Contains(normalizeText(text), p.wakePhrase) {
			p.setAction(ListenActionCommand)
			out.Kind = KindWake
		} else {
			out.Kind = KindIgnored
		}

		return out, nil
	}

	decision := p.verifier.Verify(u)
	out.Decision = &decision

	if !decision.Accepted {
		out.Kind = KindRejected
		out.Err = decision.Err

		return out, nil
	}

	// one command per wake phrase
	if p.wakePhrase != "" {
		p.setAction(ListenActionWake)
	}

	if p.exitWords[normalizeText(text)] {
		out.Kind = KindExit

		return out, nil
	}

	reply, err := p.commandBot.Dispatch(ctx, strings.ToLower(text))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out.Kind = KindDispatchFailed
		out.Err = err

		return out, nil
	}

	out.Kind = KindDispatched
	out.Reply = reply

	return out, nil
}

func (p *pipelineImpl) ListenLoop(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.halted {
		// halted before the loop got going
		p.halted = false
		p.mu.Unlock()

		p.logger.Info("listening halted")

		return nil
	}
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.halted = false
		p.mu.Unlock()
	}()

	p.logger.Info("starting to listen", zap.String("action", string(p.action())))

	for {
		out, err := p.ListenOnce(ctx)
		if err != nil {
			if p.isHalted() {
				p.logger.Info("listening halted")

				return nil
			}

			return err
		}

		p.logOutcome(out)

		if p.onOutcome != nil {
			p.onOutcome(out)
		}

		switch out.Kind {
		case KindExit:
			p.logger.Info("exiting gracefully")

			return nil
		case KindCaptureFailed:
			select {
			case <-ctx.Done():
				if p.isHalted() {
					return nil
				}

				return ctx.Err()
			case <-time.After(p.retryDelay):
			}
		}
	}
}

// HaltListening stops a running ListenLoop, abandoning the current cycle.
// Called while no loop runs, it makes the next ListenLoop return at once.
func (p *pipelineImpl) HaltListening() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.halted = true

	if p.cancel != nil {
		p.cancel()
	}
}

func (p *pipelineImpl) ListenForWake() {
	if p.wakePhrase == "" {
		p.logger.Warn("no wake phrase configured, staying in command mode")

		return
	}

	p.setAction(ListenActionWake)
}

func (p *pipelineImpl) ListenForCommand() {
	p.setAction(ListenActionCommand)
}

func (p *pipelineImpl) action() ListenAction {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.triggeredAction
}

func (p *pipelineImpl) setAction(a ListenAction) {
	p.mu.Lock()
	p.triggeredAction = a
	p.mu.Unlock()

	p.logger.Debug("listen action changed", zap.String("action", string(a)))
}

func (p *pipelineImpl) isHalted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.halted
}

func (p *pipelineImpl) logOutcome(out *Outcome) {
	fields := []zap.Field{
		zap.String("outcome", string(out.Kind)),
	}

	if out.UtteranceID != "" {
		fields = append(fields, zap.String("utterance_id", out.UtteranceID))
	}

	if out.Text != "" {
		fields = append(fields, zap.String("text", out.Text))
	}

	if out.Decision != nil {
		fields = append(fields,
			zap.String("verification", string(out.Decision.Outcome)),
			zap.Float64("score", out.Decision.Score.Final))
	}

	if out.Reply != "" {
		fields = append(fields, zap.String("reply", out.Reply))
	}

	switch out.Kind {
	case KindCaptureFailed, KindTranscriptionFailed, KindDispatchFailed:
		p.logger.Error("listen cycle failed", append(fields, zap.Error(out.Err))...)
	case KindRejected:
		p.logger.Warn("speaker rejected", append(fields, zap.Error(out.Err))...)
	case KindNoSpeech:
		p.logger.Debug("no speech", fields...)
	default:
		p.logger.Info("listen cycle done", fields...)
	}
}

// normalizeText keeps letters, digits and single spaces, lower-cased.
func normalizeText(s string) string {
	kept := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}

		return -1
	}, s)

	return strings.Join(strings.Fields(kept), " ")
}
