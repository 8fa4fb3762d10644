package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notifyService = "org.freedesktop.Notifications"
	notifyObject  = "/org/freedesktop/Notifications"
	notifyIcon    = "audio-x-generic"
)

// Freedesktop urgency levels carried in the "urgency" hint.
type urgency byte

const (
	urgencyLow urgency = iota
	urgencyNormal
	urgencyCritical
)

// notification is one Notify call. A zero replaceID asks the server for a new ID.
type notification struct {
	appName   string
	replaceID uint32
	summary   string
	body      string
	urgency   urgency
	timeoutMS int
}

// busArgs renders the susssasa{sv}i argument list: no actions, one urgency hint.
func (n notification) busArgs() []string {
	return []string{
		n.appName,
		strconv.FormatUint(uint64(n.replaceID), 10),
		notifyIcon,
		n.summary,
		n.body,
		"0",
		"1", "urgency", "y", strconv.Itoa(int(n.urgency)),
		strconv.Itoa(n.timeoutMS),
	}
}

// sendNotification returns the notification ID assigned by the server.
func sendNotification(ctx context.Context, n notification) (uint32, error) {
	out, err := callNotifications(ctx, "Notify", "susssasa{sv}i", n.busArgs()...)
	if err != nil {
		return 0, err
	}
	return parseNotificationID(out)
}

func closeNotification(ctx context.Context, id uint32) error {
	_, err := callNotifications(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	return err
}

// callNotifications invokes one method on the session bus notification service via busctl.
func callNotifications(ctx context.Context, method, signature string, args ...string) (string, error) {
	argv := append([]string{"--user", "call", notifyService, notifyObject, notifyService, method, signature}, args...)
	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", fmt.Errorf("busctl %s: %w", method, err)
		}
		return "", fmt.Errorf("busctl %s: %w (%s)", method, err, trimmed)
	}
	return trimmed, nil
}

// parseNotificationID reads busctl's "u <id>" reply.
func parseNotificationID(reply string) (uint32, error) {
	kind, value, ok := strings.Cut(reply, " ")
	if !ok || kind != "u" {
		return 0, fmt.Errorf("notify: invalid response %q", reply)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("notify: parse id %q: %w", value, err)
	}
	return uint32(id), nil
}
