package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/jfreymuth/pulse"
)

// Player plays saved audio files: WAV through PulseAudio, everything else
// through an external command such as pw-play.
type Player struct {
	External []string
}

// Play blocks until path finished playing or ctx is cancelled.
func (p Player) Play(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat audio file %q: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return playWAV(ctx, path)
	}
	return p.playExternal(ctx, path)
}

func (p Player) playExternal(ctx context.Context, path string) error {
	if len(p.External) == 0 {
		return errors.New("no external player configured")
	}
	args := append(append([]string(nil), p.External[1:]...), path)
	cmd := exec.CommandContext(ctx, p.External[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("play %q with %s: %w", path, p.External[0], err)
		}
		return fmt.Errorf("play %q with %s: %w (%s)", path, p.External[0], err, trimmed)
	}
	return nil
}

type pcmClip struct {
	samples    []int16
	channels   int
	sampleRate int
}

func decodeWAV(path string) (pcmClip, error) {
	f, err := os.Open(path)
	if err != nil {
		return pcmClip{}, fmt.Errorf("open wav %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return pcmClip{}, fmt.Errorf("%q is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return pcmClip{}, fmt.Errorf("decode wav %q: %w", path, err)
	}

	return pcmClip{
		samples:    toInt16(buf.Data, int(dec.BitDepth)),
		channels:   int(dec.NumChans),
		sampleRate: int(dec.SampleRate),
	}, nil
}

// toInt16 rescales decoded PCM integers of bitDepth into signed 16-bit samples.
func toInt16(data []int, bitDepth int) []int16 {
	out := make([]int16, len(data))
	for i, v := range data {
		switch {
		case bitDepth == 8:
			out[i] = int16((v - 128) << 8)
		case bitDepth > 16:
			out[i] = int16(v >> (bitDepth - 16))
		default:
			out[i] = int16(v)
		}
	}
	return out
}

func playWAV(ctx context.Context, path string) error {
	clip, err := decodeWAV(path)
	if err != nil {
		return err
	}

	var layout pulse.PlaybackOption
	switch clip.channels {
	case 1:
		layout = pulse.PlaybackMono
	case 2:
		layout = pulse.PlaybackStereo
	default:
		return fmt.Errorf("cannot play %d-channel audio", clip.channels)
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("musegen"),
		pulse.ClientApplicationIconName("audio-x-generic"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(clip.samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, clip.samples[cursor:])
		cursor += n
		if cursor >= len(clip.samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		layout,
		pulse.PlaybackSampleRate(clip.sampleRate),
		pulse.PlaybackMediaName("musegen preview"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %q: %w", path, err)
	}
	return ctx.Err()
}
