//go:build !linux && !darwin

package notify

func newPlatformNotifier(string) Notifier {
	return nil
}
