package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrUnsupportedContainer means the output extension does not fit the result:
	// no encoder is registered for it, or it names a different encoded format.
	ErrUnsupportedContainer = errors.New("unsupported audio container")
	// ErrUnsupportedResult means the result is neither a Writer nor a *Buffer.
	ErrUnsupportedResult = errors.New("unsupported audio result")
)

// Encoder writes a raw buffer into one container format.
type Encoder interface {
	Encode(w io.WriteSeeker, buf *Buffer, sampleRate int) error
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(w io.WriteSeeker, buf *Buffer, sampleRate int) error

func (f EncoderFunc) Encode(w io.WriteSeeker, buf *Buffer, sampleRate int) error {
	return f(w, buf, sampleRate)
}

// Sink saves audio results to disk.
type Sink struct {
	encoders map[string]Encoder
}

// NewSink returns a sink with the WAV encoder registered for ".wav".
func NewSink() *Sink {
	return &Sink{encoders: map[string]Encoder{".wav": WAVEncoder{BitDepth: 16}}}
}

// Register binds an encoder to a file extension such as ".wav".
func (s *Sink) Register(ext string, enc Encoder) {
	s.encoders[strings.ToLower(ext)] = enc
}

// Save writes result to path at sampleRate (DefaultSampleRate when <= 0).
// Results with a native write capability write themselves; raw buffers go
// through the encoder registered for the path extension.
func (s *Sink) Save(result Result, path string, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("output path is empty")
	}

	if w, ok := result.(Writer); ok {
		if ext := filepath.Ext(path); ext != "" && !matchesContainer(ext, result.Container()) {
			return fmt.Errorf("%w: %s payload cannot be saved as %q", ErrUnsupportedContainer, result.Container(), ext)
		}
		return w.WriteAudio(path, sampleRate)
	}

	buf, ok := result.(*Buffer)
	if !ok || buf == nil {
		return fmt.Errorf("%w: %T", ErrUnsupportedResult, result)
	}

	ext := strings.ToLower(filepath.Ext(path))
	enc, ok := s.encoders[ext]
	if !ok {
		return fmt.Errorf("%w: %q (raw buffers save as .wav)", ErrUnsupportedContainer, ext)
	}

	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audio file %q: %w", path, err)
	}
	if err := enc.Encode(f, buf, sampleRate); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audio file %q: %w", path, err)
	}
	return nil
}

// CreateTemporary saves result to tempPath, or to a fixed scratch file in the
// OS temp dir when tempPath is empty, and returns the written path. The
// extension of tempPath follows the result's container.
func (s *Sink) CreateTemporary(result Result, tempPath string) (string, error) {
	if strings.TrimSpace(tempPath) == "" {
		tempPath = ScratchPath(result)
	} else {
		tempPath = PathFor(tempPath, result)
	}
	if err := s.Save(result, tempPath, RateOf(result)); err != nil {
		return "", err
	}
	return tempPath, nil
}

// ScratchPath is the fixed preview location for a result's container.
func ScratchPath(result Result) string {
	container := "wav"
	if result != nil {
		container = result.Container()
	}
	return filepath.Join(os.TempDir(), "musegen-preview."+container)
}

// containerAliases lists extra extensions accepted for a container.
var containerAliases = map[string][]string{
	"wav":  {".wave"},
	"ogg":  {".oga"},
	"mpeg": {".mp3"},
}

func matchesContainer(ext, container string) bool {
	ext = strings.ToLower(ext)
	if ext == "."+container {
		return true
	}
	for _, alias := range containerAliases[container] {
		if ext == alias {
			return true
		}
	}
	return false
}

// PathFor swaps the extension of path for the result's container. Paths whose
// extension already fits are returned unchanged.
func PathFor(path string, result Result) string {
	if result == nil {
		return path
	}
	ext := filepath.Ext(path)
	if ext != "" && matchesContainer(ext, result.Container()) {
		return path
	}
	return strings.TrimSuffix(path, ext) + "." + result.Container()
}

// FileSize is best-effort; zero when the file cannot be stat'd.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// WAVEncoder writes PCM WAV through go-audio.
type WAVEncoder struct {
	BitDepth int
}

func (e WAVEncoder) Encode(w io.WriteSeeker, buf *Buffer, sampleRate int) error {
	channels := buf.Channels
	if channels <= 0 {
		channels = 1
	}
	if len(buf.Samples)%channels != 0 {
		return fmt.Errorf("%d samples do not divide into %d channels", len(buf.Samples), channels)
	}
	bitDepth := e.BitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}

	peak := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, len(buf.Samples))
	for i, sample := range buf.Samples {
		v := float64(sample)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(math.Round(v * peak))
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, 1)
	intBuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(intBuf); err != nil {
		return fmt.Errorf("write wav frames: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav header: %w", err)
	}
	return nil
}

var defaultSink = NewSink()

// Save writes result with the default sink.
func Save(result Result, path string, sampleRate int) error {
	return defaultSink.Save(result, path, sampleRate)
}

// CreateTemporary writes result to a scratch file with the default sink.
func CreateTemporary(result Result, tempPath string) (string, error) {
	return defaultSink.CreateTemporary(result, tempPath)
}
