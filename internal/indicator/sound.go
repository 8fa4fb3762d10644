package indicator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueComplete
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	// cueRamp caps the attack and release so short notes do not click.
	cueRamp = 5 * time.Millisecond
)

// note is one sine segment of a cue.
type note struct {
	hz   float64
	dur  time.Duration
	gain float64
}

// cueScores are short rising and falling arpeggios.
var cueScores = map[cueKind][]note{
	cueStart: {
		{hz: 523.25, dur: 60 * time.Millisecond, gain: 0.15},
		{hz: 659.25, dur: 60 * time.Millisecond, gain: 0.15},
	},
	cueComplete: {
		{hz: 523.25, dur: 70 * time.Millisecond, gain: 0.18},
		{hz: 659.25, dur: 70 * time.Millisecond, gain: 0.18},
		{hz: 783.99, dur: 70 * time.Millisecond, gain: 0.18},
		{hz: 1046.5, dur: 120 * time.Millisecond, gain: 0.18},
	},
	cueError: {
		{hz: 392, dur: 100 * time.Millisecond, gain: 0.18},
		{hz: 311.13, dur: 150 * time.Millisecond, gain: 0.18},
	},
}

var renderedCues = sync.OnceValue(func() map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(cueScores))
	for kind, score := range cueScores {
		out[kind] = render(score)
	}
	return out
})

func cueSamples(kind cueKind) []int16 {
	return renderedCues()[kind]
}

// emitCue plays the rendered cue for kind through Pulse.
func emitCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return playPCM(ctx, samples)
}

// playPCM blocks until mono 16-bit samples drained or ctx ended.
func playPCM(ctx context.Context, samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("musegen"),
		pulse.ClientApplicationIconName(notifyIcon),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	remaining := samples
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || len(remaining) == 0 {
			return 0, pulse.EndOfData
		}
		n := copy(buf, remaining)
		remaining = remaining[n:]
		if len(remaining) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("musegen cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return nil
}

// render concatenates notes separated by silent gaps.
func render(score []note) []int16 {
	if len(score) == 0 {
		return nil
	}
	gap := sampleCount(cueGap)
	var pcm []int16
	for i, n := range score {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, n.pcm()...)
	}
	return pcm
}

func (n note) pcm() []int16 {
	count := sampleCount(n.dur)
	if count <= 0 || n.hz <= 0 || n.gain <= 0 {
		return nil
	}
	ramp := min(max(count/10, 1), sampleCount(cueRamp))

	out := make([]int16, count)
	step := 2 * math.Pi * n.hz / cueSampleRate
	for i := range out {
		level := n.gain * envelope(i, count, ramp)
		out[i] = int16(math.Round(math.Sin(step*float64(i)) * level * math.MaxInt16))
	}
	return out
}

// envelope is a linear attack and release of ramp samples on a count-sample note.
func envelope(i, count, ramp int) float64 {
	attack := float64(i) / float64(ramp)
	release := float64(count-i-1) / float64(ramp)
	return min(1, attack, release)
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
