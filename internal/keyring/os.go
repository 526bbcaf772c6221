package keyring

import (
	"encoding/base64"
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"
)

// OSStore keeps secrets in the platform keychain (macOS Keychain, Secret
// Service, Windows Credential Manager). Secrets are base64 encoded because
// some backends only accept text.
type OSStore struct{}

func NewOSStore() *OSStore {
	return &OSStore{}
}

func (OSStore) Get(service, user string) ([]byte, error) {
	v, err := gokeyring.Get(service, user)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	secret, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("decoding secret: %w", err)
	}
	return secret, nil
}

func (OSStore) Set(service, user string, secret []byte) error {
	return gokeyring.Set(service, user, base64.StdEncoding.EncodeToString(secret))
}

func (OSStore) Delete(service, user string) error {
	err := gokeyring.Delete(service, user)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
