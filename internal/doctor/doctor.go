// Package doctor runs readiness diagnostics for config, the remote service, and local audio.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/musegen/internal/audio"
	"github.com/rbright/musegen/internal/config"
	"github.com/rbright/musegen/internal/hub"
	"github.com/rbright/musegen/internal/logging"
)

// DefaultHealthTimeout bounds the remote health probe.
const DefaultHealthTimeout = 5 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Input is everything doctor inspects. Nil Health or ListSinks skip those checks.
type Input struct {
	Path          string
	Config        config.Config
	Warnings      []config.Warning
	Health        hub.HealthChecker
	HealthTimeout time.Duration
	ListSinks     func(context.Context) ([]audio.Device, error)
}

// Run executes config, remote, log-dir, and audio checks.
func Run(ctx context.Context, in Input) Report {
	checks := []Check{checkConfig(in.Path, in.Warnings)}

	checks = append(checks, checkToken(in.Config.Remote.Token))
	if in.Health != nil {
		checks = append(checks, checkRemote(ctx, in.Health, in.Config.Remote, in.HealthTimeout))
	}
	checks = append(checks, checkLogDir(in.Config.App.LogDir))
	checks = append(checks, checkCommand(in.Config.App.Player.Argv, "player_cmd"))
	if in.Config.App.Notify.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}
	if in.ListSinks != nil {
		checks = append(checks, checkAudioSink(ctx, in.ListSinks))
	}

	return Report{Checks: checks}
}

func checkConfig(path string, warnings []config.Warning) Check {
	if len(warnings) == 0 {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", path)}
	}
	keys := make([]string, 0, len(warnings))
	for _, w := range warnings {
		keys = append(keys, w.Key)
	}
	return Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q with %d warning(s): %s", path, len(warnings), strings.Join(keys, ", ")),
	}
}

// checkToken fails on an empty token; generation can still be attempted anonymously.
func checkToken(token string) Check {
	if strings.TrimSpace(token) == "" {
		return Check{Name: "token", Pass: false, Message: "no API token configured; run `musegen token`"}
	}
	return Check{Name: "token", Pass: true, Message: "API token configured"}
}

func checkRemote(ctx context.Context, health hub.HealthChecker, remote config.RemoteConfig, timeout time.Duration) Check {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := "remote." + remote.Transport
	if err := health.Health(ctx); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s unreachable: %v", remote.Endpoint, err)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("healthy at %s", remote.Endpoint)}
}

// checkLogDir creates the log dir when needed and proves it accepts files.
func checkLogDir(dir string) Check {
	resolved, err := logging.ResolveDir(dir)
	if err != nil {
		return Check{Name: "log_dir", Pass: false, Message: err.Error()}
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return Check{Name: "log_dir", Pass: false, Message: fmt.Sprintf("create %s: %v", resolved, err)}
	}
	probe, err := os.CreateTemp(resolved, ".doctor-*")
	if err != nil {
		return Check{Name: "log_dir", Pass: false, Message: fmt.Sprintf("%s is not writable: %v", resolved, err)}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return Check{Name: "log_dir", Pass: true, Message: fmt.Sprintf("writable at %s", resolved)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkAudioSink(ctx context.Context, list func(context.Context) ([]audio.Device, error)) Check {
	devices, err := list(ctx)
	if err != nil {
		return Check{Name: "audio.sink", Pass: false, Message: err.Error()}
	}
	if len(devices) == 0 {
		return Check{Name: "audio.sink", Pass: false, Message: "no output sinks found"}
	}
	device, ok := audio.DefaultDevice(devices)
	if !ok {
		return Check{Name: "audio.sink", Pass: true, Message: fmt.Sprintf("%d sink(s), none marked default", len(devices))}
	}
	message := fmt.Sprintf("default %q", device.ID)
	if device.Muted {
		message += " (muted)"
	}
	return Check{Name: "audio.sink", Pass: true, Message: message}
}
