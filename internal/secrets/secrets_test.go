package secrets

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestSetAndGet(t *testing.T) {
	keyring.MockInit()

	if err := SetVAPIDPrivateKey("priv-key"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := GetVAPIDPrivateKey()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "priv-key" {
		t.Errorf("got %q", got)
	}
}

func TestGetMissing(t *testing.T) {
	keyring.MockInit()

	if _, err := GetVAPIDPrivateKey(); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetEmpty(t *testing.T) {
	keyring.MockInit()

	if err := SetVAPIDPrivateKey(""); err == nil {
		t.Error("empty key should be rejected")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	keyring.MockInit()

	if err := SetVAPIDPrivateKey("k"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := DeleteVAPIDPrivateKey(); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if _, err := GetVAPIDPrivateKey(); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v after delete", err)
	}
}

func TestResolve(t *testing.T) {
	keyring.MockInit()
	if err := SetVAPIDPrivateKey("from-keyring"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		configured string
		useKeyring bool
		want       string
	}{
		{"config wins", "from-config", true, "from-config"},
		{"keyring", "", true, "from-keyring"},
		{"keyring disabled", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveVAPIDPrivateKey(tt.configured, tt.useKeyring)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	keyring.MockInit()
	got, err := ResolveVAPIDPrivateKey("", true)
	if err != nil || got != "" {
		t.Errorf("empty keyring: got %q, %v", got, err)
	}
}
