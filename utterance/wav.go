package utterance

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"github.com/zenwerk/go-wave"
)

const wavFormatPCM = 1

var ErrInvalidWAV = errors.New("invalid wav data")

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// WAV encodes the clip as a PCM16 mono WAV file, the handoff format expected
// by transcription services.
func (u *Utterance) WAV() ([]byte, error) {
	var out bytes.Buffer

	param := wave.WriterParam{
		Out:           nopWriteCloser{&out},
		Channel:       1,
		SampleRate:    u.sampleRate,
		BitsPerSample: 16,
	}

	waveWriter, err := wave.NewWriter(param)
	if err != nil {
		return nil, fmt.Errorf("create wav writer: %w", err)
	}

	if _, err = waveWriter.WriteSample16(u.Int16s()); err != nil {
		return nil, fmt.Errorf("write wav samples: %w", err)
	}

	if err = waveWriter.Close(); err != nil {
		return nil, fmt.Errorf("close wav writer: %w", err)
	}

	return out.Bytes(), nil
}

// IntBuffer exposes the clip as a go-audio buffer.
func (u *Utterance) IntBuffer() *audio.IntBuffer {
	samples := u.Int16s()
	data := make([]int, len(samples))

	for i, s := range samples {
		data[i] = int(s)
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  u.sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// SaveWAV writes the clip to path on fileSys.
func (u *Utterance) SaveWAV(fileSys afero.Fs, path string) error {
	f, err := fileSys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, u.sampleRate, 16, 1, wavFormatPCM)

	if err = encoder.Write(u.IntBuffer()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err = encoder.Close(); err != nil {
		return fmt.Errorf("finish %s: %w", path, err)
	}

	return nil
}

// DecodeWAV reads a 16-bit mono WAV file. Files in any other layout are
// rejected rather than converted, since samples are never resampled or
// down-mixed implicitly.
func DecodeWAV(r io.ReadSeeker) (*Utterance, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	if decoder.NumChans != 1 {
		return nil, fmt.Errorf("%w: expected mono, got %d channels", ErrInvalidWAV, decoder.NumChans)
	}

	if decoder.BitDepth != 16 {
		return nil, fmt.Errorf("%w: expected 16-bit samples, got %d", ErrInvalidWAV, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s)))
	}

	return FromPCM16(pcm, int(decoder.SampleRate))
}
