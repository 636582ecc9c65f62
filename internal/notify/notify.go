// Package notify shows desktop notifications through the host's native
// tooling: notify-send on Linux and osascript on macOS.
package notify

import (
	"os/exec"
)

// Notifier sends a desktop notification.
type Notifier interface {
	Send(title, message string, sound bool) error
	IsSupported() bool
}

// commandRunner runs an external notification helper. Tests replace it.
var commandRunner = func(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

var lookPath = exec.LookPath

type noopNotifier struct{}

func (noopNotifier) Send(string, string, bool) error { return nil }

func (noopNotifier) IsSupported() bool { return false }

// Noop returns a Notifier that drops everything.
func Noop() Notifier {
	return noopNotifier{}
}

// New returns the platform notifier, or a no-op one when the host has no
// notification helper installed.
func New(appName string) Notifier {
	n := newPlatformNotifier(appName)
	if n == nil || !n.IsSupported() {
		return noopNotifier{}
	}
	return n
}
