package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/rbright/musegen/internal/cli"
	"github.com/rbright/musegen/internal/logging"
)

func (r Runner) commandToken(inv invocation) int {
	value := inv.parsed.Value
	if !inv.parsed.HasValue {
		read, err := r.readSecret("API token: ")
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: read token: %v\n", err)
			return 1
		}
		value = read
	}
	value = strings.TrimSpace(value)

	if err := inv.store.SetToken(value); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	inv.logger.Info("token updated", "cleared", value == "")

	if value == "" {
		fmt.Fprintln(r.Stdout, "token cleared")
		return 0
	}
	fmt.Fprintf(r.Stdout, "token saved to %s\n", inv.store.Path())
	return 0
}

// readSecret reads without echo from a terminal, or one line from piped input.
func (r Runner) readSecret(prompt string) (string, error) {
	stdin := r.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(r.Stderr, prompt)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}

func (r Runner) commandConfig(inv invocation) int {
	section, key, _ := strings.Cut(inv.parsed.Key, ".")

	switch inv.parsed.Sub {
	case cli.SubPath:
		fmt.Fprintln(r.Stdout, inv.store.Path())
		return 0
	case cli.SubGet:
		value, ok := inv.store.Lookup(section, key)
		if !ok {
			fmt.Fprintf(r.Stderr, "error: %s is not set\n", inv.parsed.Key)
			return 1
		}
		fmt.Fprintln(r.Stdout, value)
		return 0
	case cli.SubSet:
		if err := inv.store.Set(section, key, inv.parsed.Value); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		_, warnings := inv.store.Settings()
		for _, w := range warnings {
			if w.Key == inv.parsed.Key {
				fmt.Fprintf(r.Stderr, "warning: %s: %s\n", w.Key, w.Message)
			}
		}
		inv.logger.Info("config updated", "key", inv.parsed.Key)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported config subcommand %q\n", inv.parsed.Sub)
		return 2
	}
}

func (r Runner) commandLogs(inv invocation) int {
	dir, err := logging.ResolveDir(inv.cfg.App.LogDir)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	switch inv.parsed.Sub {
	case cli.SubClear:
		removed, err := logging.Clear(dir, inv.logPath)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "removed %d log file(s) from %s\n", removed, dir)
		return 0
	case cli.SubTail:
		return r.tailLatest(dir, inv)
	default:
		files, err := logging.List(dir)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		for _, file := range files {
			mark := " "
			if file.Path == inv.logPath {
				mark = "*"
			}
			fmt.Fprintf(r.Stdout, "%s %s  %s  %s\n", mark, file.Name, humanize.Bytes(uint64(file.Size)), humanize.Time(file.ModTime))
		}
		return 0
	}
}

// tailLatest shows the newest log other than the one this command is writing.
func (r Runner) tailLatest(dir string, inv invocation) int {
	files, err := logging.List(dir)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	for _, file := range files {
		if file.Path == inv.logPath {
			continue
		}
		lines, err := logging.Tail(file.Path, inv.parsed.Lines)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "==> %s <==\n", file.Path)
		for _, line := range lines {
			fmt.Fprintln(r.Stdout, line)
		}
		return 0
	}
	fmt.Fprintf(r.Stderr, "error: no previous log files in %s\n", dir)
	return 1
}
