// Package cli parses musegen command lines into a typed request.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandGenerate Command = "generate"
	CommandServe    Command = "serve"
	CommandStatus   Command = "status"
	CommandSave     Command = "save"
	CommandPreview  Command = "preview"
	CommandDevices  Command = "devices"
	CommandToken    Command = "token"
	CommandConfig   Command = "config"
	CommandLogs     Command = "logs"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// Subcommands of config and logs.
const (
	SubGet   = "get"
	SubSet   = "set"
	SubPath  = "path"
	SubList  = "list"
	SubTail  = "tail"
	SubClear = "clear"
)

// commandArgs parses whatever follows a command name.
type commandArgs func(parsed *Parsed, args []string) error

var commands = map[Command]commandArgs{
	CommandGenerate: parseGenerate,
	CommandServe:    noArgs,
	CommandStatus:   noArgs,
	CommandSave:     parseSave,
	CommandPreview:  noArgs,
	CommandDevices:  noArgs,
	CommandToken:    parseToken,
	CommandConfig:   parseConfig,
	CommandLogs:     parseLogs,
	CommandDoctor:   noArgs,
	CommandVersion:  noArgs,
	CommandHelp:     noArgs,
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// generate
	Prompt string
	Output string
	Play   bool
	Local  bool

	// config, logs
	Sub   string
	Key   string
	Value string
	Lines int

	// HasValue distinguishes `token ""` from `token`.
	HasValue bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			parseRest, ok := commands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parseRest(&parsed, args[i+1:]); err != nil {
				return Parsed{}, fmt.Errorf("%s: %w", cmd, err)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func noArgs(_ *Parsed, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
	}
	return nil
}

// parseGenerate accepts flags anywhere before `--`; remaining words form the prompt.
func parseGenerate(parsed *Parsed, args []string) error {
	var words []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			words = append(words, args[i+1:]...)
			i = len(args)
		case arg == "-o" || arg == "--output":
			i++
			if i >= len(args) {
				return fmt.Errorf("%s requires a path", arg)
			}
			parsed.Output = args[i]
		case strings.HasPrefix(arg, "--output="):
			parsed.Output = strings.TrimPrefix(arg, "--output=")
		case arg == "--play":
			parsed.Play = true
		case arg == "--local":
			parsed.Local = true
		case strings.HasPrefix(arg, "-") && arg != "-":
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			words = append(words, arg)
		}
	}

	parsed.Prompt = strings.TrimSpace(strings.Join(words, " "))
	if parsed.Prompt == "" {
		return errors.New("a prompt is required")
	}
	return nil
}

func parseSave(parsed *Parsed, args []string) error {
	switch len(args) {
	case 0:
		return nil
	case 1:
		parsed.Output = args[0]
		return nil
	default:
		return errors.New("expected at most one output path")
	}
}

func parseToken(parsed *Parsed, args []string) error {
	switch len(args) {
	case 0:
		return nil
	case 1:
		parsed.Value = args[0]
		parsed.HasValue = true
		return nil
	default:
		return errors.New("expected at most one token value")
	}
}

func parseConfig(parsed *Parsed, args []string) error {
	if len(args) == 0 {
		return errors.New("expected get, set, or path")
	}
	parsed.Sub = args[0]
	rest := args[1:]

	switch parsed.Sub {
	case SubPath:
		return noArgs(parsed, rest)
	case SubGet:
		if len(rest) != 1 {
			return errors.New("get requires SECTION.KEY")
		}
		return setKey(parsed, rest[0])
	case SubSet:
		if len(rest) != 2 {
			return errors.New("set requires SECTION.KEY VALUE")
		}
		parsed.Value = rest[1]
		parsed.HasValue = true
		return setKey(parsed, rest[0])
	default:
		return fmt.Errorf("unknown subcommand: %s", parsed.Sub)
	}
}

func setKey(parsed *Parsed, raw string) error {
	section, key, ok := strings.Cut(raw, ".")
	if !ok || strings.TrimSpace(section) == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("key %q must look like SECTION.KEY", raw)
	}
	parsed.Key = section + "." + key
	return nil
}

func parseLogs(parsed *Parsed, args []string) error {
	parsed.Sub = SubList
	if len(args) == 0 {
		return nil
	}
	parsed.Sub = args[0]
	rest := args[1:]

	switch parsed.Sub {
	case SubList, SubClear:
		return noArgs(parsed, rest)
	case SubTail:
		if len(rest) == 0 {
			return nil
		}
		if len(rest) > 1 {
			return errors.New("tail accepts one line count")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid line count %q", rest[0])
		}
		parsed.Lines = n
		return nil
	default:
		return fmt.Errorf("unknown subcommand: %s", parsed.Sub)
	}
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  generate [-o PATH] [--play] [--local] PROMPT...
            Generate music from a text prompt
  serve     Run the daemon that keeps the resolved pipeline warm
  status    Print daemon state
  save [PATH]
            Save the daemon's last result (default: app.default_save_path)
  preview   Play the daemon's last result
  devices   List audio output sinks
  token [VALUE]
            Store the API token (prompts without echo when VALUE is omitted)
  config get SECTION.KEY | set SECTION.KEY VALUE | path
            Read or write config values
  logs [list | tail [N] | clear]
            Inspect session log files
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $MUSEGEN_CONFIG or config/config.ini)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
