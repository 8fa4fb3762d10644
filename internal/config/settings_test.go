package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openWith(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	store, err := Open(path)
	require.NoError(t, err)
	return store
}

func TestSettingsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := Open(filepath.Join(t.TempDir(), "config.ini"))
	require.NoError(t, err)

	cfg, warnings := store.Settings()
	require.Empty(t, warnings)
	require.Equal(t, DefaultModelID, cfg.Remote.ModelID)
	require.Equal(t, DefaultRevision, cfg.Remote.Revision)
	require.Equal(t, "cpu", cfg.Remote.Device)
	require.Equal(t, TransportHTTP, cfg.Remote.Transport)
	require.Equal(t, DefaultEndpoint, cfg.Remote.Endpoint)
	require.Empty(t, cfg.Remote.CallSignature)
	require.Equal(t, 300*time.Second, cfg.Remote.Timeout)
	require.Equal(t, filepath.Join(home, "Desktop", "musegen.wav"), cfg.App.DefaultSavePath)
	require.Equal(t, 650, cfg.App.WindowWidth)
	require.Equal(t, 320, cfg.App.WindowHeight)
	require.Equal(t, DefaultLogDir, cfg.App.LogDir)
	require.Equal(t, []string{"pw-play", "--media-role", "Music"}, cfg.App.Player.Argv)
	require.Equal(t, "info", cfg.App.LogLevel)
	require.Equal(t, NotifyConfig{Enable: true, Sound: true, AppName: "musegen", TimeoutMS: 4000}, cfg.App.Notify)
}

func TestSettingsWarnsAndFallsBack(t *testing.T) {
	store := openWith(t, `
[modelscope]
model_id =
transport = carrier-pigeon
call_signature = prompt
timeout_seconds = soon
endpoint = https://example.test/

[app]
window_width = wide
window_height = -3
player_cmd = "mpv --no-video
log_level = chatty
notify = sometimes
`)

	cfg, warnings := store.Settings()
	require.Equal(t, DefaultModelID, cfg.Remote.ModelID)
	require.Equal(t, TransportHTTP, cfg.Remote.Transport)
	require.Empty(t, cfg.Remote.CallSignature)
	require.Equal(t, 300*time.Second, cfg.Remote.Timeout)
	require.Equal(t, "https://example.test", cfg.Remote.Endpoint)
	require.Equal(t, 650, cfg.App.WindowWidth)
	require.Equal(t, 320, cfg.App.WindowHeight)
	require.Equal(t, DefaultPlayerCmd, cfg.App.Player.Raw)

	keys := make([]string, 0, len(warnings))
	for _, w := range warnings {
		keys = append(keys, w.Key)
	}
	require.ElementsMatch(t, []string{
		"modelscope.model_id",
		"modelscope.transport",
		"modelscope.call_signature",
		"modelscope.timeout_seconds",
		"app.window_width",
		"app.window_height",
		"app.player_cmd",
		"app.log_level",
		"app.notify",
	}, keys)
	require.Equal(t, "info", cfg.App.LogLevel)
	require.True(t, cfg.App.Notify.Enable)
}

func TestSettingsAcceptsPinnedSignatureAndGRPC(t *testing.T) {
	store := openWith(t, `
[modelscope]
transport = GRPC
call_signature = input
endpoint = 127.0.0.1:50051
`)

	cfg, warnings := store.Settings()
	require.Empty(t, warnings)
	require.Equal(t, TransportGRPC, cfg.Remote.Transport)
	require.Equal(t, "input", cfg.Remote.CallSignature)
	require.Equal(t, "127.0.0.1:50051", cfg.Remote.Endpoint)
}

func TestSettingsNotifyOverrides(t *testing.T) {
	store := openWith(t, `
[app]
notify = false
notify_sound = off
notify_app_name =
notify_timeout_ms = 1500
log_level = DEBUG
`)

	cfg, warnings := store.Settings()
	require.Empty(t, warnings)
	require.Equal(t, NotifyConfig{Enable: false, Sound: false, AppName: "musegen", TimeoutMS: 1500}, cfg.App.Notify)
	require.Equal(t, "debug", cfg.App.LogLevel)
}

func TestResolvePath(t *testing.T) {
	t.Setenv("MUSEGEN_CONFIG", "")
	require.Equal(t, DefaultPath, ResolvePath(""))
	require.Equal(t, "/tmp/x.ini", ResolvePath("/tmp/x.ini"))

	t.Setenv("MUSEGEN_CONFIG", "/etc/musegen.ini")
	require.Equal(t, "/etc/musegen.ini", ResolvePath("  "))
	require.Equal(t, "/tmp/x.ini", ResolvePath("/tmp/x.ini"))
}

func TestExpandUser(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.Equal(t, home, ExpandUser("~"))
	require.Equal(t, filepath.Join(home, "Desktop", "a.wav"), ExpandUser("~/Desktop/a.wav"))
	require.Equal(t, "/abs/path", ExpandUser("/abs/path"))
	require.Equal(t, "rel/~x", ExpandUser("rel/~x"))
}
