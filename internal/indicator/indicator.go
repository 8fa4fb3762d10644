// Package indicator reports generation progress through desktop notifications and audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/musegen/internal/config"
)

// Controller is the session-facing indicator contract.
type Controller interface {
	ShowGenerating(context.Context)
	ShowComplete(context.Context, string)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// Desktop sends replaceable freedesktop notifications and synthesized Pulse cues.
type Desktop struct {
	cfg      config.NotifyConfig
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
	cues           sync.WaitGroup
}

// NewDesktop creates an indicator from config.
func NewDesktop(cfg config.NotifyConfig, logger *slog.Logger) *Desktop {
	return &Desktop{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// ShowGenerating signals that a prompt was sent to the remote.
func (d *Desktop) ShowGenerating(ctx context.Context) {
	d.playCue(cueStart)
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notify(ctx, d.messages.generating, "", urgencyLow, 0)
	})
}

// ShowComplete signals success; detail is typically the saved or preview path.
func (d *Desktop) ShowComplete(ctx context.Context, detail string) {
	d.playCue(cueComplete)
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notify(ctx, d.messages.complete, detail, urgencyNormal, d.timeout())
	})
}

// ShowError signals failure with text, or a generic message when text is empty.
func (d *Desktop) ShowError(ctx context.Context, text string) {
	d.playCue(cueError)
	if !d.cfg.Enable {
		return
	}
	if strings.TrimSpace(text) == "" {
		text = d.messages.errorText
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notify(ctx, d.messages.failed, text, urgencyCritical, d.timeout())
	})
}

// Hide closes the current notification.
func (d *Desktop) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, d.dismiss)
}

// Wait blocks until queued cues finished playing.
func (d *Desktop) Wait() {
	d.cues.Wait()
}

func (d *Desktop) timeout() int {
	if d.cfg.TimeoutMS <= 0 {
		return config.DefaultNotifyTimeout
	}
	return d.cfg.TimeoutMS
}

// notify sends a replaceable desktop notification and stores its ID.
func (d *Desktop) notify(ctx context.Context, summary, body string, level urgency, timeoutMS int) error {
	d.mu.Lock()
	replaceID := d.notificationID
	d.mu.Unlock()

	appName := strings.TrimSpace(d.cfg.AppName)
	if appName == "" {
		appName = config.DefaultNotifyAppName
	}

	id, err := sendNotification(ctx, notification{
		appName:   appName,
		replaceID: replaceID,
		summary:   summary,
		body:      body,
		urgency:   level,
		timeoutMS: timeoutMS,
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.notificationID = id
	d.mu.Unlock()
	return nil
}

// dismiss closes the current desktop notification ID when present.
func (d *Desktop) dismiss(ctx context.Context) error {
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	return closeNotification(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (d *Desktop) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (d *Desktop) playCue(kind cueKind) {
	if !d.cfg.Sound {
		return
	}
	d.cues.Add(1)
	go func() {
		defer d.cues.Done()
		d.soundMu.Lock()
		defer d.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := emitCue(ctx, kind); err != nil {
			d.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
