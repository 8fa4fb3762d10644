package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// knownSignatures lists the call-signature names a pipeline may be pinned to.
var knownSignatures = map[string]struct{}{
	"text_inputs": {},
	"input":       {},
}

// Settings materializes the typed runtime config from the store.
// Malformed values fall back to defaults and produce warnings instead of errors.
func (s *Store) Settings() (Config, []Warning) {
	var warnings []Warning
	warn := func(key, format string, args ...any) {
		warnings = append(warnings, Warning{Key: key, Message: fmt.Sprintf(format, args...)})
	}

	boolValue := func(section, key string, fallback bool) bool {
		k, ok := s.lookup(section, key)
		if !ok || strings.TrimSpace(k.String()) == "" {
			return fallback
		}
		b, err := k.Bool()
		if err != nil {
			warn(section+"."+key, "invalid boolean %q; using %t", k.String(), fallback)
			return fallback
		}
		return b
	}

	intValue := func(section, key string, fallback int) int {
		raw := strings.TrimSpace(s.Get(section, key, ""))
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			warn(section+"."+key, "invalid positive integer %q; using %d", raw, fallback)
			return fallback
		}
		return n
	}

	cfg := Config{
		Remote: RemoteConfig{
			Token:         strings.TrimSpace(s.Token()),
			ModelID:       strings.TrimSpace(s.Get(SectionModelScope, "model_id", DefaultModelID)),
			Revision:      strings.TrimSpace(s.Get(SectionModelScope, "model_revision", "")),
			Device:        strings.TrimSpace(s.Get(SectionModelScope, "device", DefaultDevice)),
			Endpoint:      strings.TrimRight(strings.TrimSpace(s.Get(SectionModelScope, "endpoint", DefaultEndpoint)), "/"),
			Transport:     strings.ToLower(strings.TrimSpace(s.Get(SectionModelScope, "transport", TransportHTTP))),
			CallSignature: strings.TrimSpace(s.Get(SectionModelScope, "call_signature", "")),
			Timeout:       time.Duration(intValue(SectionModelScope, "timeout_seconds", DefaultTimeoutSeconds)) * time.Second,
		},
		App: AppConfig{
			DefaultSavePath: ExpandUser(s.Get(SectionApp, "default_save_path", DefaultSavePath())),
			WindowWidth:     intValue(SectionApp, "window_width", DefaultWindowWidth),
			WindowHeight:    intValue(SectionApp, "window_height", DefaultWindowHeight),
			LogDir:          ExpandUser(s.Get(SectionApp, "log_dir", DefaultLogDir)),
			TempFile:        ExpandUser(s.Get(SectionApp, "temp_file", "")),
			LogLevel:        strings.ToLower(strings.TrimSpace(s.Get(SectionApp, "log_level", DefaultLogLevel))),
			Notify: NotifyConfig{
				Enable:    boolValue(SectionApp, "notify", true),
				Sound:     boolValue(SectionApp, "notify_sound", true),
				AppName:   strings.TrimSpace(s.Get(SectionApp, "notify_app_name", DefaultNotifyAppName)),
				TimeoutMS: intValue(SectionApp, "notify_timeout_ms", DefaultNotifyTimeout),
			},
		},
	}

	if cfg.Remote.ModelID == "" {
		warn(SectionModelScope+".model_id", "model_id is empty; using %s", DefaultModelID)
		cfg.Remote.ModelID = DefaultModelID
	}
	if cfg.Remote.Device == "" {
		cfg.Remote.Device = DefaultDevice
	}
	if cfg.Remote.Endpoint == "" {
		warn(SectionModelScope+".endpoint", "endpoint is empty; using %s", DefaultEndpoint)
		cfg.Remote.Endpoint = DefaultEndpoint
	}

	switch cfg.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		warn(SectionApp+".log_level", "unknown log level %q; using %s", cfg.App.LogLevel, DefaultLogLevel)
		cfg.App.LogLevel = DefaultLogLevel
	}
	if cfg.App.Notify.AppName == "" {
		cfg.App.Notify.AppName = DefaultNotifyAppName
	}

	switch cfg.Remote.Transport {
	case TransportHTTP, TransportGRPC:
	case "":
		cfg.Remote.Transport = TransportHTTP
	default:
		warn(SectionModelScope+".transport", "unknown transport %q; using %s", cfg.Remote.Transport, TransportHTTP)
		cfg.Remote.Transport = TransportHTTP
	}

	if sig := cfg.Remote.CallSignature; sig != "" {
		if _, ok := knownSignatures[sig]; !ok {
			warn(SectionModelScope+".call_signature", "unknown call signature %q; negotiating instead", sig)
			cfg.Remote.CallSignature = ""
		}
	}

	playerRaw := s.Get(SectionApp, "player_cmd", DefaultPlayerCmd)
	argv, err := parseArgv(playerRaw)
	if err != nil || len(argv) == 0 {
		if err != nil {
			warn(SectionApp+".player_cmd", "%v; using %q", err, DefaultPlayerCmd)
		}
		playerRaw = DefaultPlayerCmd
		argv, _ = parseArgv(DefaultPlayerCmd)
	}
	cfg.App.Player = CommandConfig{Raw: playerRaw, Argv: argv}

	return cfg, warnings
}
