// Package secrets keeps the VAPID private key in the OS keyring so it does
// not have to live in the config file.
package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service  = "nudge"
	vapidKey = "vapid-private-key"
)

var ErrNotFound = errors.New("secret not found in keyring")

func GetVAPIDPrivateKey() (string, error) {
	key, err := keyring.Get(service, vapidKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read keyring: %w", err)
	}
	return key, nil
}

func SetVAPIDPrivateKey(key string) error {
	if key == "" {
		return errors.New("vapid private key cannot be empty")
	}
	if err := keyring.Set(service, vapidKey, key); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

// DeleteVAPIDPrivateKey removes the key. A missing key is not an error.
func DeleteVAPIDPrivateKey() error {
	err := keyring.Delete(service, vapidKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete from keyring: %w", err)
	}
	return nil
}

// ResolveVAPIDPrivateKey returns configured when set, otherwise the keyring
// value when useKeyring is true. An empty result disables web push.
func ResolveVAPIDPrivateKey(configured string, useKeyring bool) (string, error) {
	if configured != "" || !useKeyring {
		return configured, nil
	}
	key, err := GetVAPIDPrivateKey()
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return key, err
}
