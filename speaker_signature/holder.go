package speaker_signature

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"voice-gated-assistant/utterance"
)

// Holder owns the current signature for a session. Readers see either the
// previous or the new signature, never a partial one.
type Holder struct {
	current atomic.Pointer[Signature]
	store   Store
	path    string
	logger  *zap.Logger
}

type HolderConfig struct {
	Store Store
	// WatchPath is the on-disk signature file watched by Watch.
	WatchPath string
	Logger    *zap.Logger
}

func NewHolder(cfg *HolderConfig) (*Holder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L().Named("speaker_signature")
	}

	return &Holder{
		store:  cfg.Store,
		path:   cfg.WatchPath,
		logger: logger,
	}, nil
}

// Current returns nil when no signature is enrolled.
func (h *Holder) Current() *Signature {
	return h.current.Load()
}

func (h *Holder) Set(sig *Signature) {
	h.current.Store(sig)
}

// Reload replaces the current signature with the stored one. On error the
// current signature is kept.
func (h *Holder) Reload() error {
	sig, err := h.store.Load()
	if err != nil {
		return err
	}

	h.current.Store(sig)

	return nil
}

// Enroll averages the samples into a new signature, saves it and makes it
// current. The previous signature stays current when saving fails.
func (h *Holder) Enroll(utts []*utterance.Utterance) (*Signature, error) {
	sig, err := Enroll(h.store, utts)
	if err != nil {
		return nil, err
	}

	h.current.Store(sig)

	return sig, nil
}

// refresh swaps in a rewritten signature. A missing or unreadable file
// never replaces the one already held.
func (h *Holder) refresh(target string) {
	sig, err := h.store.Load()
	if err != nil {
		h.logger.Error("signature reload failed", zap.Error(err))

		return
	}

	if sig == nil {
		if h.Current() != nil {
			h.logger.Warn("signature file is gone, keeping the loaded signature",
				zap.String("path", target))
		}

		return
	}

	h.current.Store(sig)

	h.logger.Info("signature reloaded",
		zap.String("path", target),
		zap.Int("samples", sig.Len()))
}

// Watch reloads the signature whenever its file is rewritten, until ctx is
// done. The parent directory is watched so atomic renames are seen. Once a
// signature is held, removing its file does not clear it.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return fmt.Errorf("watch path is empty")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(h.path)

	if err = watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	h.logger.Info("watching signature", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				h.logger.Warn("signature file removed, keeping the loaded signature",
					zap.String("path", target))

				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.refresh(target)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			h.logger.Error("signature watcher error", zap.Error(err))
		}
	}
}
