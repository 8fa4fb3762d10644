package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/classify"
	"github.com/rbright/musegen/internal/config"
	"github.com/rbright/musegen/internal/ipc"
)

const (
	// controlTimeout bounds quick daemon roundtrips such as status.
	controlTimeout = 220 * time.Millisecond
	// forwardSlack is added to the remote timeout for forwarded generations,
	// which may include pipeline resolution.
	forwardSlack = 30 * time.Second
)

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, controlTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) commandSave(ctx context.Context, inv invocation) int {
	req := ipc.Request{Command: ipc.CommandSave, Output: absolute(inv.parsed.Output)}
	return r.forwardOrFail(ctx, req, time.Minute)
}

func (r Runner) commandPreview(ctx context.Context, inv invocation) int {
	return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandPreview}, playbackTimeout(inv.cfg))
}

// commandGenerate prefers a running daemon and falls back to an in-process session.
func (r Runner) commandGenerate(ctx context.Context, inv invocation) int {
	output := absolute(inv.parsed.Output)

	if !inv.parsed.Local {
		if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
			req := ipc.Request{
				Command: ipc.CommandGenerate,
				Prompt:  inv.parsed.Prompt,
				Output:  output,
				Play:    inv.parsed.Play,
			}
			timeout := inv.cfg.Remote.Timeout + forwardSlack
			if inv.parsed.Play {
				timeout += playbackTimeout(inv.cfg)
			}
			resp, handled, err := tryForward(ctx, socketPath, req, timeout)
			if handled {
				inv.logger.Info("generate forwarded to daemon", "socket", socketPath, "ok", err == nil)
				return r.printResponse(resp, err)
			}
		}
	}

	backend, release, err := r.backend(inv.cfg.Remote)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer release()

	s := newStack(backend, inv)
	defer s.indicator.Wait()

	if _, err := s.controller.Generate(ctx, inv.parsed.Prompt); err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", classify.Message(err))
		return 1
	}

	path, err := s.controller.SaveCurrent(output)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	r.printSaved(path, audio.FileSize(path))

	if inv.parsed.Play {
		if _, err := s.controller.Preview(ctx); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}
	return 0
}

// commandServe owns the runtime socket until ctx is cancelled.
func (r Runner) commandServe(ctx context.Context, inv invocation) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	backend, release, err := r.backend(inv.cfg.Remote)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer release()

	s := newStack(backend, inv)
	defer s.indicator.Wait()

	warmed := make(chan struct{})
	go func() {
		defer close(warmed)
		binding, err := s.resolver.Resolve(ctx)
		if err != nil {
			if ctx.Err() == nil {
				inv.logger.Warn("pipeline warmup failed; retrying on first generate",
					"category", string(classify.Of(err)),
					"error", err.Error(),
				)
			}
			return
		}
		inv.logger.Info("pipeline warm", "model", binding.Model, "task", binding.Task)
	}()

	fmt.Fprintf(r.Stdout, "listening on %s\n", socketPath)
	inv.logger.Info("daemon listening", "socket", socketPath)

	serveErr := ipc.Serve(ctx, listener, s.controller)
	<-warmed
	if serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serveErr)
		return 1
	}
	inv.logger.Info("daemon stopped")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request, timeout time.Duration) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req, timeout)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running musegen daemon; start one with `musegen serve`")
		return 1
	}
	return r.printResponse(resp, err)
}

func (r Runner) printResponse(resp ipc.Response, err error) int {
	if err != nil {
		if resp.Message != "" {
			fmt.Fprintf(r.Stderr, "error: %s\n", resp.Message)
		} else {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
		return 1
	}
	if resp.Path != "" && resp.Bytes > 0 {
		r.printSaved(resp.Path, resp.Bytes)
		return 0
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) printSaved(path string, size int64) {
	fmt.Fprintf(r.Stdout, "saved %s (%s)\n", path, humanize.Bytes(uint64(size)))
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// absolute expands ~ and anchors relative paths here, since the daemon's
// working directory may differ.
func absolute(path string) string {
	path = config.ExpandUser(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func playbackTimeout(cfg config.Config) time.Duration {
	return cfg.Remote.Timeout
}
