package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/classify"
	"github.com/rbright/musegen/internal/hub"
	"github.com/rbright/musegen/internal/ipc"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	release chan struct{}
	result  audio.Result
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (audio.Result, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &audio.Buffer{Samples: []float32{0, 0.5, -0.5, 0}, Channels: 1, SampleRate: 16000}, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeIndicator struct {
	generating atomic.Int32
	complete   atomic.Int32
	errors     atomic.Int32

	mu       sync.Mutex
	lastText string
}

func (f *fakeIndicator) ShowGenerating(context.Context) { f.generating.Add(1) }
func (f *fakeIndicator) ShowComplete(context.Context, string) { f.complete.Add(1) }
func (f *fakeIndicator) ShowError(_ context.Context, text string) {
	f.errors.Add(1)
	f.mu.Lock()
	f.lastText = text
	f.mu.Unlock()
}
func (f *fakeIndicator) Hide(context.Context) {}

type fakePlayer struct {
	played []string
	err    error
}

func (f *fakePlayer) Play(_ context.Context, path string) error {
	f.played = append(f.played, path)
	return f.err
}

func newTestController(t *testing.T, gen Generator) (*Controller, *fakeIndicator, *fakePlayer) {
	t.Helper()
	dir := t.TempDir()
	ind := &fakeIndicator{}
	player := &fakePlayer{}
	c := NewController(gen, Options{
		Player:          player,
		Indicator:       ind,
		DefaultSavePath: filepath.Join(dir, "default.wav"),
		TempPath:        filepath.Join(dir, "preview.wav"),
	})
	return c, ind, player
}

func waitForStatus(t *testing.T, c *Controller, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s (current=%s)", want, c.Status())
}

func TestGenerateRejectsBlankPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	c, ind, _ := newTestController(t, gen)

	_, err := c.Generate(context.Background(), "   \t")
	require.ErrorIs(t, err, ErrEmptyPrompt)
	require.Zero(t, gen.calls())
	require.Zero(t, ind.generating.Load())
	require.Equal(t, StatusIdle, c.Status())
}

func TestGenerateKeepsCurrentResult(t *testing.T) {
	gen := &fakeGenerator{}
	c, ind, _ := newTestController(t, gen)

	result, err := c.Generate(context.Background(), "  calm piano  ")
	require.NoError(t, err)
	require.Equal(t, "wav", result.Container())
	require.Equal(t, []string{"calm piano"}, gen.prompts)

	current, ok := c.Current()
	require.True(t, ok)
	require.Same(t, result, current)
	require.EqualValues(t, 1, ind.generating.Load())
	require.EqualValues(t, 1, ind.complete.Load())
	require.Equal(t, StatusIdle, c.Status())
}

func TestGenerateFailureKeepsPreviousResult(t *testing.T) {
	gen := &fakeGenerator{}
	c, ind, _ := newTestController(t, gen)

	first, err := c.Generate(context.Background(), "first")
	require.NoError(t, err)

	gen.err = classify.Wrap(&hub.Error{Code: hub.CodeUnavailable, Op: "call", Message: "connection reset"})
	_, err = c.Generate(context.Background(), "second")
	require.Error(t, err)

	current, ok := c.Current()
	require.True(t, ok)
	require.Same(t, first, current)
	require.EqualValues(t, 1, ind.errors.Load())
	require.Equal(t, classify.Message(err), ind.lastText)
}

func TestStartRejectsConcurrentGeneration(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	c, _, _ := newTestController(t, gen)

	first := c.Start(context.Background(), "drums")
	waitForStatus(t, c, StatusGenerating)

	second := <-c.Start(context.Background(), "bass")
	require.ErrorIs(t, second.Err, ErrBusy)

	_, err := c.Generate(context.Background(), "synth")
	require.ErrorIs(t, err, ErrBusy)

	close(gen.release)
	outcome := <-first
	require.NoError(t, outcome.Err)
	require.Equal(t, "drums", outcome.Prompt)
	require.NotNil(t, outcome.Result)
	require.False(t, outcome.FinishedAt.Before(outcome.StartedAt))

	_, ok := <-first
	require.False(t, ok, "outcome channel should be closed after one value")
	require.Equal(t, 1, gen.calls())
	require.Equal(t, StatusIdle, c.Status())
}

func TestStartHonorsCancellation(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	c, _, _ := newTestController(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	out := c.Start(ctx, "strings")
	waitForStatus(t, c, StatusGenerating)
	cancel()

	outcome := <-out
	require.ErrorIs(t, outcome.Err, context.Canceled)
	require.Equal(t, StatusIdle, c.Status())
	_, ok := c.Current()
	require.False(t, ok)
}

func TestSaveCurrentRequiresResult(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})

	_, err := c.SaveCurrent("")
	require.ErrorIs(t, err, ErrNothingToSave)

	_, err = c.Preview(context.Background())
	require.ErrorIs(t, err, ErrNothingToSave)
}

func TestSaveCurrentUsesDefaultPath(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})
	_, err := c.Generate(context.Background(), "ambient")
	require.NoError(t, err)

	path, err := c.SaveCurrent("")
	require.NoError(t, err)
	require.Equal(t, c.savePath, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(44))
}

func TestSaveCurrentRejectsRawBufferAsNonWAV(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})
	_, err := c.Generate(context.Background(), "ambient")
	require.NoError(t, err)

	_, err = c.SaveCurrent(filepath.Join(t.TempDir(), "song.mp3"))
	require.ErrorIs(t, err, audio.ErrUnsupportedContainer)
}

func TestSaveCurrentDefaultPathFollowsEncodedContainer(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{result: &audio.Encoded{Data: []byte("ID3"), Format: "mp3"}})
	_, err := c.Generate(context.Background(), "ambient")
	require.NoError(t, err)

	path, err := c.SaveCurrent("")
	require.NoError(t, err)
	require.Equal(t, strings.TrimSuffix(c.savePath, ".wav")+".mp3", path)
	require.FileExists(t, path)
	require.NoFileExists(t, c.savePath)
}

func TestSaveCurrentRejectsEncodedUnderWrongExtension(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{result: &audio.Encoded{Data: []byte("ID3"), Format: "mp3"}})
	_, err := c.Generate(context.Background(), "ambient")
	require.NoError(t, err)

	_, err = c.SaveCurrent(filepath.Join(t.TempDir(), "song.wav"))
	require.ErrorIs(t, err, audio.ErrUnsupportedContainer)
}

func TestPreviewWritesEncodedResultUnderItsContainer(t *testing.T) {
	c, _, player := newTestController(t, &fakeGenerator{result: &audio.Encoded{Data: []byte("ID3"), Format: "mp3"}})
	_, err := c.Generate(context.Background(), "ambient")
	require.NoError(t, err)

	path, err := c.Preview(context.Background())
	require.NoError(t, err)
	require.Equal(t, ".mp3", filepath.Ext(path))
	require.Equal(t, []string{path}, player.played)
}

func TestPreviewPlaysScratchFile(t *testing.T) {
	c, _, player := newTestController(t, &fakeGenerator{})
	_, err := c.Generate(context.Background(), "lofi")
	require.NoError(t, err)

	path, err := c.Preview(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{path}, player.played)
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestPreviewReportsPlaybackFailure(t *testing.T) {
	c, _, player := newTestController(t, &fakeGenerator{})
	player.err = errors.New("no sink")
	_, err := c.Generate(context.Background(), "lofi")
	require.NoError(t, err)

	_, err = c.Preview(context.Background())
	require.ErrorContains(t, err, "no sink")
}

func TestHandleStatus(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, string(StatusIdle), resp.State)
	require.Equal(t, "no music generated yet", resp.Message)

	_, err := c.Generate(context.Background(), "jazz")
	require.NoError(t, err)

	resp = c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.Contains(t, resp.Message, "last wav result ready")
}

func TestHandleGenerateSavesAndPlays(t *testing.T) {
	c, _, player := newTestController(t, &fakeGenerator{})
	output := filepath.Join(t.TempDir(), "out", "song.wav")

	resp := c.Handle(context.Background(), ipc.Request{
		Command: ipc.CommandGenerate,
		Prompt:  "upbeat funk",
		Output:  output,
		Play:    true,
	})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, output, resp.Path)
	require.Greater(t, resp.Bytes, int64(0))
	require.Len(t, player.played, 1)
}

func TestHandleGenerateReportsCategory(t *testing.T) {
	gen := &fakeGenerator{err: classify.Wrap(errors.New("No module named 'librosa'"))}
	c, _, _ := newTestController(t, gen)

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandGenerate, Prompt: "folk"})
	require.False(t, resp.OK)
	require.Equal(t, string(classify.MissingDependency), resp.Category)
	require.Contains(t, resp.Message, "Retry any time")
}

func TestHandleGuardErrorsCarryNoCategory(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandGenerate, Prompt: " "})
	require.False(t, resp.OK)
	require.Empty(t, resp.Category)
	require.Equal(t, ErrEmptyPrompt.Error(), resp.Error)

	resp = c.Handle(context.Background(), ipc.Request{Command: ipc.CommandSave})
	require.False(t, resp.OK)
	require.Equal(t, ErrNothingToSave.Error(), resp.Error)
}

func TestHandleUnknownCommand(t *testing.T) {
	c, _, _ := newTestController(t, &fakeGenerator{})

	resp := c.Handle(context.Background(), ipc.Request{Command: "record"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}
