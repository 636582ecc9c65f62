//go:build linux

package notify

import "fmt"

type linuxNotifier struct {
	appName string
}

func newPlatformNotifier(appName string) Notifier {
	return &linuxNotifier{appName: appName}
}

func (n *linuxNotifier) IsSupported() bool {
	_, err := lookPath("notify-send")
	return err == nil
}

func (n *linuxNotifier) Send(title, message string, sound bool) error {
	args := []string{"--app-name=" + n.appName}
	// notify-send has no sound flag; the daemon decides based on urgency.
	if sound {
		args = append(args, "--urgency=normal")
	}
	args = append(args, title, message)

	if err := commandRunner("notify-send", args...); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}
