// Package audio persists, previews, and plays generated music.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSampleRate is the rate raw buffers are written at unless the caller overrides it.
const DefaultSampleRate = 44100

// Result is audio returned by a remote pipeline call.
type Result interface {
	// Container is the file format the result naturally saves as, for example "wav".
	Container() string
}

// Writer is implemented by results that know how to serialize themselves.
type Writer interface {
	WriteAudio(path string, sampleRate int) error
}

// Encoded is an audio file the remote already encoded (wav, mp3, flac, ...).
type Encoded struct {
	Data       []byte
	Format     string
	SampleRate int // as reported by the remote; zero when unknown
}

// Container reports the payload format, defaulting to wav.
func (e *Encoded) Container() string {
	format := strings.ToLower(strings.TrimSpace(e.Format))
	if format == "" {
		return "wav"
	}
	return format
}

// WriteAudio writes the payload as-is. The payload already carries its own
// sample rate, so sampleRate is only checked for sanity.
func (e *Encoded) WriteAudio(path string, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("encoded %s payload is empty", e.Container())
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, e.Data, 0o644); err != nil {
		return fmt.Errorf("write %s audio %q: %w", e.Container(), path, err)
	}
	return nil
}

// Buffer is a raw interleaved sample buffer in the nominal range [-1, 1].
type Buffer struct {
	Samples    []float32
	Channels   int
	SampleRate int // as reported by the remote; zero when unknown
}

// Container is always wav: raw buffers go through the generic WAV encoder.
func (b *Buffer) Container() string {
	return "wav"
}

// Frames returns the sample count per channel.
func (b *Buffer) Frames() int {
	channels := b.Channels
	if channels <= 0 {
		channels = 1
	}
	return len(b.Samples) / channels
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %q: %w", dir, err)
	}
	return nil
}

// RateOf returns the sample rate the remote reported for result, or DefaultSampleRate.
func RateOf(result Result) int {
	rate := 0
	switch r := result.(type) {
	case *Encoded:
		rate = r.SampleRate
	case *Buffer:
		rate = r.SampleRate
	}
	if rate <= 0 {
		return DefaultSampleRate
	}
	return rate
}
