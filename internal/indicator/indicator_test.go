package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/musegen/internal/config"
	"github.com/stretchr/testify/require"
)

func testNotifyConfig() config.NotifyConfig {
	return config.NotifyConfig{Enable: true, Sound: false, AppName: "musegen-test", TimeoutMS: 1500}
}

func TestDesktopNotifyReplacesAndDismisses(t *testing.T) {
	t.Setenv("LANG", "en_US.UTF-8")
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
echo "u 42"
`)

	notify := NewDesktop(testNotifyConfig(), nil)
	notify.ShowGenerating(context.Background())
	notify.ShowComplete(context.Background(), "/tmp/song.wav")
	notify.Hide(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "Notify susssasa{sv}i musegen-test 0 audio-x-generic Generating music…  0 1 urgency y 0 0")
	require.Contains(t, lines[1], "Notify susssasa{sv}i musegen-test 42 audio-x-generic Music ready /tmp/song.wav 0 1 urgency y 1 1500")
	require.Contains(t, lines[2], "CloseNotification u 42")
}

func TestDesktopShowErrorDefaultsText(t *testing.T) {
	t.Setenv("LANG", "C")
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
echo "u 7"
`)

	cfg := testNotifyConfig()
	cfg.TimeoutMS = 0
	notify := NewDesktop(cfg, nil)
	notify.ShowError(context.Background(), " ")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "Generation failed Music generation error 0 1 urgency y 2 4000")
}

func TestDesktopDisabledSkipsBusctl(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
echo "u 1"
`)

	notify := NewDesktop(config.NotifyConfig{}, nil)
	notify.ShowGenerating(context.Background())
	notify.ShowComplete(context.Background(), "x")
	notify.ShowError(context.Background(), "ignored")
	notify.Hide(context.Background())
	notify.Wait()

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func TestDesktopNotifyFailureIsSwallowed(t *testing.T) {
	installBusctlStub(t, `
echo "no session bus" >&2
exit 1
`)

	notify := NewDesktop(testNotifyConfig(), nil)
	notify.ShowGenerating(context.Background())
	notify.Hide(context.Background())

	notify.mu.Lock()
	defer notify.mu.Unlock()
	require.Zero(t, notify.notificationID)
}

func TestDesktopNotifyRejectsMalformedReply(t *testing.T) {
	installBusctlStub(t, `
echo "s nonsense"
`)

	_, err := sendNotification(context.Background(), notification{appName: "musegen", summary: "summary", timeoutMS: 100})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid response")
}

func TestParseNotificationID(t *testing.T) {
	id, err := parseNotificationID("u 513")
	require.NoError(t, err)
	require.EqualValues(t, 513, id)

	_, err = parseNotificationID("u")
	require.Error(t, err)

	_, err = parseNotificationID("u 99999999999")
	require.ErrorContains(t, err, "parse id")
}

func installBusctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "busctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
