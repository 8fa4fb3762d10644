// Package session coordinates one-at-a-time generation requests and the last result.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/classify"
)

var (
	// ErrEmptyPrompt rejects blank prompts before anything reaches the remote.
	ErrEmptyPrompt = errors.New("prompt is empty; describe the music to generate")
	// ErrBusy rejects a request while another generation is in flight.
	ErrBusy = errors.New("a generation is already in progress")
	// ErrNothingToSave means no generation has succeeded yet.
	ErrNothingToSave = errors.New("no generated music yet; generate first")
)

// Status is the request-level state reported to callers.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
)

// Generator turns a prompt into audio.
type Generator interface {
	Generate(ctx context.Context, prompt string) (audio.Result, error)
}

// Sink persists audio results.
type Sink interface {
	Save(result audio.Result, path string, sampleRate int) error
	CreateTemporary(result audio.Result, tempPath string) (string, error)
}

// Player plays a saved audio file.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowGenerating(context.Context)
	ShowComplete(context.Context, string)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowGenerating(context.Context) {}
func (noopIndicator) ShowComplete(context.Context, string) {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) Hide(context.Context) {}

// Options wires the controller's collaborators. Nil fields get defaults.
type Options struct {
	Sink            Sink
	Player          Player
	Indicator       Indicator
	DefaultSavePath string
	TempPath        string
	Logger          *slog.Logger
}

// Outcome is the result of one asynchronous generation.
type Outcome struct {
	Prompt     string
	Result     audio.Result
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller runs at most one generation at a time and keeps the last success.
type Controller struct {
	logger    *slog.Logger
	generator Generator
	sink      Sink
	player    Player
	indicator Indicator
	savePath  string
	tempPath  string

	mu       sync.Mutex
	status   Status
	current  audio.Result
	prompt   string
	finished time.Time
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(generator Generator, opts Options) *Controller {
	if opts.Sink == nil {
		opts.Sink = audio.NewSink()
	}
	if opts.Player == nil {
		opts.Player = audio.Player{}
	}
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Controller{
		logger:    logger.With("component", "session"),
		generator: generator,
		sink:      opts.Sink,
		player:    opts.Player,
		indicator: opts.Indicator,
		savePath:  opts.DefaultSavePath,
		tempPath:  opts.TempPath,
		status:    StatusIdle,
	}
}

// Status returns the current request state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Current returns the last successful result, if any.
func (c *Controller) Current() (audio.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != nil
}

// Generate blocks until the remote produced audio for prompt.
func (c *Controller) Generate(ctx context.Context, prompt string) (audio.Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	return c.run(ctx, prompt)
}

// Start runs Generate on its own goroutine. The returned channel yields exactly one Outcome.
func (c *Controller) Start(ctx context.Context, prompt string) <-chan Outcome {
	out := make(chan Outcome, 1)
	started := time.Now()
	prompt = strings.TrimSpace(prompt)

	var err error
	if prompt == "" {
		err = ErrEmptyPrompt
	} else {
		err = c.begin()
	}
	if err != nil {
		out <- Outcome{Prompt: prompt, Err: err, StartedAt: started, FinishedAt: time.Now()}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		result, err := c.run(ctx, prompt)
		out <- Outcome{Prompt: prompt, Result: result, Err: err, StartedAt: started, FinishedAt: time.Now()}
	}()
	return out
}

// SaveCurrent writes the last result to path, or to the default save path
// when path is empty, and returns the written path.
func (c *Controller) SaveCurrent(path string) (string, error) {
	current, ok := c.Current()
	if !ok {
		return "", ErrNothingToSave
	}
	if strings.TrimSpace(path) == "" {
		path = audio.PathFor(c.savePath, current)
	}
	if err := c.sink.Save(current, path, audio.RateOf(current)); err != nil {
		c.logger.Error("save failed", "path", path, "error", err.Error())
		return "", fmt.Errorf("save music: %w", err)
	}
	c.logger.Info("music saved", "path", path, "container", current.Container())
	return path, nil
}

// Preview writes the last result to the scratch file and plays it.
func (c *Controller) Preview(ctx context.Context) (string, error) {
	current, ok := c.Current()
	if !ok {
		return "", ErrNothingToSave
	}
	path, err := c.sink.CreateTemporary(current, c.tempPath)
	if err != nil {
		return "", fmt.Errorf("write preview file: %w", err)
	}
	if err := c.player.Play(ctx, path); err != nil {
		c.logger.Warn("preview playback failed", "path", path, "error", err.Error())
		return path, fmt.Errorf("play preview: %w", err)
	}
	return path, nil
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusGenerating {
		return ErrBusy
	}
	c.status = StatusGenerating
	return nil
}

func (c *Controller) run(ctx context.Context, prompt string) (audio.Result, error) {
	started := time.Now()
	c.indicator.ShowGenerating(ctx)
	c.logger.Info("generation started", "prompt_chars", len([]rune(prompt)))

	result, err := c.generator.Generate(ctx, prompt)

	c.mu.Lock()
	c.status = StatusIdle
	if err == nil {
		c.current = result
		c.prompt = prompt
		c.finished = time.Now()
	}
	c.mu.Unlock()

	elapsed := time.Since(started)
	if err != nil {
		c.logger.Error("generation failed",
			"category", string(classify.Of(err)),
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err.Error(),
		)
		c.indicator.ShowError(context.WithoutCancel(ctx), classify.Message(err))
		return nil, err
	}

	c.logger.Info("generation succeeded", "container", result.Container(), "elapsed_ms", elapsed.Milliseconds())
	c.indicator.ShowComplete(ctx, "")
	return result, nil
}
