// Package app dispatches parsed musegen commands to the session, daemon, and admin helpers.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/cli"
	"github.com/rbright/musegen/internal/config"
	"github.com/rbright/musegen/internal/doctor"
	"github.com/rbright/musegen/internal/hub"
	"github.com/rbright/musegen/internal/logging"
	"github.com/rbright/musegen/internal/version"
)

const binaryName = "musegen"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	Logger *slog.Logger

	// Backend replaces the transport selected by modelscope.transport.
	Backend hub.Backend
	// ListSinks replaces Pulse sink discovery.
	ListSinks func(context.Context) ([]audio.Device, error)
}

// invocation is the loaded state shared by one command run.
type invocation struct {
	parsed   cli.Parsed
	store    *config.Store
	cfg      config.Config
	warnings []config.Warning
	logger   *slog.Logger
	logPath  string
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr, Stdin: os.Stdin}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) (code int) {
	var logger *slog.Logger
	var closeLog func() error
	defer func() {
		if rec := recover(); rec != nil {
			code = r.recovered(logger, rec)
		}
		if closeLog != nil {
			_ = closeLog()
		}
	}()

	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	configPath := config.ResolvePath(parsed.ConfigPath)
	store, err := config.Open(configPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	cfg, warnings := store.Settings()

	logRuntime, err := logging.New(cfg.App.LogDir, logging.Options{
		Level:   logging.ParseLevel(cfg.App.LogLevel),
		Console: r.Stderr,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	closeLog = logRuntime.Close

	logger = r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	// Printed directly; info level keeps the console tee from repeating them.
	for _, w := range warnings {
		fmt.Fprintf(r.Stderr, "warning: %s: %s\n", w.Key, w.Message)
		logger.Info("config warning", "key", w.Key, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", store.Path(),
		"log", logRuntime.Path,
		"transport", cfg.Remote.Transport,
	)

	inv := invocation{
		parsed:   parsed,
		store:    store,
		cfg:      cfg,
		warnings: warnings,
		logger:   logger,
		logPath:  logRuntime.Path,
	}

	switch parsed.Command {
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, inv)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandSave:
		return r.commandSave(ctx, inv)
	case cli.CommandPreview:
		return r.commandPreview(ctx, inv)
	case cli.CommandGenerate:
		return r.commandGenerate(ctx, inv)
	case cli.CommandServe:
		return r.commandServe(ctx, inv)
	case cli.CommandToken:
		return r.commandToken(inv)
	case cli.CommandConfig:
		return r.commandConfig(inv)
	case cli.CommandLogs:
		return r.commandLogs(inv)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// recovered logs a panic that escaped a command and maps it to exit code 1.
func (r Runner) recovered(logger *slog.Logger, rec any) int {
	if logger != nil {
		logger.Error("command panicked", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
	}
	fmt.Fprintf(r.Stderr, "error: internal failure: %v\n", rec)
	return 1
}

func (r Runner) commandDoctor(ctx context.Context, inv invocation) int {
	in := doctor.Input{
		Path:      inv.store.Path(),
		Config:    inv.cfg,
		Warnings:  inv.warnings,
		ListSinks: r.listSinks(),
	}

	backend, closeBackend, err := r.backend(inv.cfg.Remote)
	if err != nil {
		in.Health = unreachable{err: err}
	} else {
		defer closeBackend()
		if checker, ok := backend.(hub.HealthChecker); ok {
			in.Health = checker
		}
	}

	report := doctor.Run(ctx, in)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

// unreachable reports a backend construction failure through the health check.
type unreachable struct{ err error }

func (u unreachable) Health(context.Context) error { return u.err }

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := r.listSinks()(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio output sinks found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) listSinks() func(context.Context) ([]audio.Device, error) {
	if r.ListSinks != nil {
		return r.ListSinks
	}
	return audio.ListSinks
}
