package speaker_signature

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/sbinet/npyio"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"voice-gated-assistant/utterance"
)

// Store persists the single enrolled signature.
type Store interface {
	// Load returns nil without an error when nothing has been enrolled.
	Load() (*Signature, error)
	// Save replaces the stored signature wholesale.
	Save(sig *Signature) error
}

type StoreConfig struct {
	FileSys afero.Fs
	Path    string
	// SampleRate is not part of the file and is attached on load.
	SampleRate int
	Logger     *zap.Logger
}

type npyStore struct {
	fileSys    afero.Fs
	path       string
	sampleRate int
	logger     *zap.Logger
}

func NewStore(cfg *StoreConfig) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("path is empty")
	}

	rate := cfg.SampleRate
	if rate == 0 {
		rate = utterance.DefaultSampleRate
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L().Named("speaker_signature")
	}

	return &npyStore{
		fileSys:    cfg.FileSys,
		path:       cfg.Path,
		sampleRate: rate,
		logger:     logger,
	}, nil
}

func (s *npyStore) Load() (*Signature, error) {
	f, err := s.fileSys.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no signature enrolled", zap.String("path", s.path))

		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open signature: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read signature header: %w", err)
	}

	if len(r.Header.Descr.Shape) != 1 {
		return nil, fmt.Errorf("signature must be one-dimensional, got shape %v", r.Header.Descr.Shape)
	}

	var samples []float64

	switch r.Header.Descr.Type {
	case "<f8":
		if err = r.Read(&samples); err != nil {
			return nil, fmt.Errorf("read signature: %w", err)
		}
	case "<f4":
		var f32 []float32
		if err = r.Read(&f32); err != nil {
			return nil, fmt.Errorf("read signature: %w", err)
		}

		samples = make([]float64, len(f32))
		for i, v := range f32 {
			samples[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported signature dtype %q", r.Header.Descr.Type)
	}

	sig, err := FromSamples(samples, s.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("signature %s: %w", s.path, err)
	}

	s.logger.Info("signature loaded",
		zap.String("path", s.path),
		zap.Int("samples", sig.Len()))

	return sig, nil
}

func (s *npyStore) Save(sig *Signature) error {
	if sig == nil {
		return fmt.Errorf("signature is nil")
	}

	var buf bytes.Buffer
	if err := npyio.Write(&buf, sig.samples); err != nil {
		return fmt.Errorf("encode signature: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fileSys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create signature dir: %w", err)
		}
	}

	// write next to the target and rename so readers never see a partial file
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fileSys, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}

	if err := s.fileSys.Rename(tmp, s.path); err != nil {
		_ = s.fileSys.Remove(tmp)

		return fmt.Errorf("replace signature: %w", err)
	}

	s.logger.Info("signature saved",
		zap.String("path", s.path),
		zap.Int("samples", sig.Len()))

	return nil
}
