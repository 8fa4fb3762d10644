package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/classify"
	"github.com/rbright/musegen/internal/ipc"
)

// Handle serves IPC commands against this controller.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.statusResponse()
	case ipc.CommandGenerate:
		return c.handleGenerate(ctx, req)
	case ipc.CommandSave:
		return c.handleSave(req.Output)
	case ipc.CommandPreview:
		return c.handlePreview(ctx)
	default:
		return ipc.Response{OK: false, State: string(c.Status()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) statusResponse() ipc.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := ipc.Response{OK: true, State: string(c.status), Message: "no music generated yet"}
	if c.current != nil {
		resp.Message = fmt.Sprintf("last %s result ready for %q (generated %s)", c.current.Container(), c.prompt, c.finished.Format("15:04:05"))
	}
	return resp
}

func (c *Controller) handleGenerate(ctx context.Context, req ipc.Request) ipc.Response {
	result, err := c.Generate(ctx, req.Prompt)
	if err != nil {
		return c.failure(err)
	}

	resp := ipc.Response{OK: true, State: string(c.Status()), Message: fmt.Sprintf("generated %s audio", result.Container())}
	if req.Output != "" {
		saved := c.handleSave(req.Output)
		if !saved.OK {
			return saved
		}
		resp.Path, resp.Bytes, resp.Message = saved.Path, saved.Bytes, saved.Message
	}
	if req.Play {
		if _, err := c.Preview(ctx); err != nil {
			return c.failure(err)
		}
	}
	return resp
}

func (c *Controller) handleSave(path string) ipc.Response {
	written, err := c.SaveCurrent(path)
	if err != nil {
		return c.failure(err)
	}
	return ipc.Response{
		OK:      true,
		State:   string(c.Status()),
		Message: "saved",
		Path:    written,
		Bytes:   audio.FileSize(written),
	}
}

func (c *Controller) handlePreview(ctx context.Context) ipc.Response {
	path, err := c.Preview(ctx)
	if err != nil {
		return c.failure(err)
	}
	return ipc.Response{OK: true, State: string(c.Status()), Message: "played", Path: path}
}

// failure renders err for remote callers. Guard errors carry no category.
func (c *Controller) failure(err error) ipc.Response {
	resp := ipc.Response{OK: false, State: string(c.Status()), Error: err.Error()}
	if errors.Is(err, ErrEmptyPrompt) || errors.Is(err, ErrBusy) || errors.Is(err, ErrNothingToSave) {
		return resp
	}
	resp.Category = string(classify.Of(err))
	resp.Message = classify.Message(err)
	return resp
}
