package speaker_signature

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sbinet/npyio"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voice-gated-assistant/utterance"
)

func newStore(t *testing.T, fileSys afero.Fs, path string) Store {
	store, err := NewStore(&StoreConfig{
		FileSys: fileSys,
		Path:    path,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)

	return store
}

func utteranceOf(t *testing.T, rate int, samples ...float64) *utterance.Utterance {
	u, err := utterance.FromFloat64(samples, rate)
	require.NoError(t, err)

	return u
}

func TestFromSamples(t *testing.T) {
	t.Run("copies its input", func(t *testing.T) {
		in := []float64{0.1, 0.2}

		sig, err := FromSamples(in, 16000)
		require.NoError(t, err)

		in[0] = 9
		out := sig.Samples()
		out[1] = 9

		assert.Equal(t, []float64{0.1, 0.2}, sig.Samples())
		assert.Equal(t, 2, sig.Len())
		assert.Equal(t, 16000, sig.SampleRate())
	})

	t.Run("empty samples are rejected", func(t *testing.T) {
		_, err := FromSamples(nil, 16000)
		assert.ErrorIs(t, err, ErrEmptySample)
	})
}

func TestAverage(t *testing.T) {
	t.Run("averages sample by sample over the shortest recording", func(t *testing.T) {
		a := utteranceOf(t, 16000, 0.5, 0.5, 0.5)
		b := utteranceOf(t, 16000, -0.5, 0.25)

		sig, err := Average([]*utterance.Utterance{a, b})
		require.NoError(t, err)

		require.Equal(t, 2, sig.Len())

		want := []float64{
			(a.Float64s()[0] + b.Float64s()[0]) / 2,
			(a.Float64s()[1] + b.Float64s()[1]) / 2,
		}
		assert.InDeltaSlice(t, want, sig.Samples(), 1e-12)
	})

	t.Run("no recordings", func(t *testing.T) {
		_, err := Average(nil)
		assert.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("mixed sample rates", func(t *testing.T) {
		_, err := Average([]*utterance.Utterance{
			utteranceOf(t, 16000, 0.1),
			utteranceOf(t, 8000, 0.1),
		})
		assert.ErrorIs(t, err, ErrSampleRateMismatch)
	})

	t.Run("an empty recording", func(t *testing.T) {
		_, err := Average([]*utterance.Utterance{
			utteranceOf(t, 16000, 0.1),
			utteranceOf(t, 16000),
		})
		assert.ErrorIs(t, err, ErrEmptySample)
	})
}

func TestStore(t *testing.T) {
	t.Run("a missing file means no enrollment", func(t *testing.T) {
		sig, err := newStore(t, afero.NewMemMapFs(), "data/signature.npy").Load()

		assert.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("save then load is bit for bit", func(t *testing.T) {
		store := newStore(t, afero.NewMemMapFs(), "data/signature.npy")

		samples := []float64{0.1, -0.25, 1.0 / 3, 0, -1}
		sig, err := FromSamples(samples, 16000)
		require.NoError(t, err)

		require.NoError(t, store.Save(sig))

		loaded, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)

		assert.Equal(t, samples, loaded.Samples())
		assert.Equal(t, 16000, loaded.SampleRate())
	})

	t.Run("save replaces the previous signature and leaves no temp file", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()
		store := newStore(t, fileSys, "signature.npy")

		first, _ := FromSamples([]float64{1, 2, 3}, 16000)
		second, _ := FromSamples([]float64{4}, 16000)

		require.NoError(t, store.Save(first))
		require.NoError(t, store.Save(second))

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, []float64{4}, loaded.Samples())

		exists, err := afero.Exists(fileSys, "signature.npy.tmp")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("float32 signatures are accepted", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()

		var buf bytes.Buffer
		require.NoError(t, npyio.Write(&buf, []float32{0.5, -0.25}))
		require.NoError(t, afero.WriteFile(fileSys, "signature.npy", buf.Bytes(), 0o644))

		loaded, err := newStore(t, fileSys, "signature.npy").Load()
		require.NoError(t, err)

		assert.Equal(t, []float64{0.5, -0.25}, loaded.Samples())
	})

	t.Run("integer arrays are rejected", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()

		var buf bytes.Buffer
		require.NoError(t, npyio.Write(&buf, []int32{1, 2}))
		require.NoError(t, afero.WriteFile(fileSys, "signature.npy", buf.Bytes(), 0o644))

		_, err := newStore(t, fileSys, "signature.npy").Load()
		assert.Error(t, err)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		fileSys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fileSys, "signature.npy", []byte("not numpy"), 0o644))

		_, err := newStore(t, fileSys, "signature.npy").Load()
		assert.Error(t, err)
	})
}

func TestEnroll(t *testing.T) {
	store := newStore(t, afero.NewMemMapFs(), "signature.npy")

	sig, err := Enroll(store, []*utterance.Utterance{
		utteranceOf(t, 16000, 0.5, 0.5),
		utteranceOf(t, 16000, 0.5, 0.5),
		utteranceOf(t, 16000, 0.5, 0.5),
	})
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, sig.Samples(), loaded.Samples())
}

func TestHolder(t *testing.T) {
	t.Run("starts empty and reloads from the store", func(t *testing.T) {
		store := newStore(t, afero.NewMemMapFs(), "signature.npy")

		h, err := NewHolder(&HolderConfig{Store: store, Logger: zap.NewNop()})
		require.NoError(t, err)

		assert.Nil(t, h.Current())

		sig, _ := FromSamples([]float64{0.1}, 16000)
		require.NoError(t, store.Save(sig))
		require.NoError(t, h.Reload())

		require.NotNil(t, h.Current())
		assert.Equal(t, []float64{0.1}, h.Current().Samples())
	})

	t.Run("enroll saves and swaps the current signature", func(t *testing.T) {
		store := newStore(t, afero.NewMemMapFs(), "signature.npy")

		h, err := NewHolder(&HolderConfig{Store: store, Logger: zap.NewNop()})
		require.NoError(t, err)

		a, err := utterance.FromFloat64([]float64{0.2, 0.4}, 16000)
		require.NoError(t, err)

		b, err := utterance.FromFloat64([]float64{0.4, 0.2, 0.9}, 16000)
		require.NoError(t, err)

		sig, err := h.Enroll([]*utterance.Utterance{a, b})
		require.NoError(t, err)

		assert.Same(t, sig, h.Current())
		assert.Equal(t, 2, sig.Len())

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.InDeltaSlice(t, sig.Samples(), loaded.Samples(), 1e-12)

		_, err = h.Enroll(nil)
		assert.ErrorIs(t, err, ErrNoSamples)
		assert.Same(t, sig, h.Current())
	})

	t.Run("watch picks up a re-enrollment from another writer", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "signature.npy")

		store := newStore(t, afero.NewOsFs(), path)

		h, err := NewHolder(&HolderConfig{Store: store, WatchPath: path, Logger: zap.NewNop()})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- h.Watch(ctx) }()

		writer := newStore(t, afero.NewOsFs(), path)
		sig, _ := FromSamples([]float64{0.3, 0.4}, 16000)

		// keep rewriting until the watcher is up and has seen a change
		require.Eventually(t, func() bool {
			if err := writer.Save(sig); err != nil {
				return false
			}

			cur := h.Current()

			return cur != nil && cur.Len() == 2
		}, 5*time.Second, 50*time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("removing the file while watching keeps the loaded signature", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "signature.npy")

		store := newStore(t, afero.NewOsFs(), path)

		sig, _ := FromSamples([]float64{0.5, 0.6, 0.7}, 16000)
		require.NoError(t, store.Save(sig))

		h, err := NewHolder(&HolderConfig{Store: store, WatchPath: path, Logger: zap.NewNop()})
		require.NoError(t, err)
		require.NoError(t, h.Reload())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- h.Watch(ctx) }()

		// wait until the watcher reacts to a rewrite of the same signature
		require.Eventually(t, func() bool {
			if err := store.Save(sig); err != nil {
				return false
			}

			cur := h.Current()

			return cur != nil && cur != sig
		}, 5*time.Second, 50*time.Millisecond)

		require.NoError(t, os.Remove(path))
		time.Sleep(300 * time.Millisecond)

		require.NotNil(t, h.Current())
		assert.Equal(t, []float64{0.5, 0.6, 0.7}, h.Current().Samples())

		// a later re-enrollment is still picked up
		next, _ := FromSamples([]float64{0.1, 0.2}, 16000)
		require.Eventually(t, func() bool {
			if err := store.Save(next); err != nil {
				return false
			}

			cur := h.Current()

			return cur != nil && cur.Len() == 2
		}, 5*time.Second, 50*time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("watch requires a path", func(t *testing.T) {
		h, err := NewHolder(&HolderConfig{Store: newStore(t, afero.NewMemMapFs(), "s.npy")})
		require.NoError(t, err)

		assert.Error(t, h.Watch(context.Background()))
	})

	t.Run("watch fails for a missing directory", func(t *testing.T) {
		path := filepath.Join(os.TempDir(), "does-not-exist-vga", "signature.npy")

		h, err := NewHolder(&HolderConfig{
			Store:     newStore(t, afero.NewMemMapFs(), "s.npy"),
			WatchPath: path,
			Logger:    zap.NewNop(),
		})
		require.NoError(t, err)

		assert.Error(t, h.Watch(context.Background()))
	})
}
