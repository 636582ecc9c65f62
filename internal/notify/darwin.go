//go:build darwin

package notify

import (
	"fmt"
	"strings"
)

type darwinNotifier struct{}

func newPlatformNotifier(string) Notifier {
	return &darwinNotifier{}
}

func (n *darwinNotifier) IsSupported() bool {
	_, err := lookPath("osascript")
	return err == nil
}

func (n *darwinNotifier) Send(title, message string, sound bool) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, quoteAppleScript(message), quoteAppleScript(title))
	if sound {
		script += ` sound name "default"`
	}
	if err := commandRunner("osascript", "-e", script); err != nil {
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}

func quoteAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
