// Package keyring stores secrets scoped by (service, user).
package keyring

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by backends when no secret exists.
var ErrNotFound = errors.New("secret not found")

// Store is a keyed secret backend.
type Store interface {
	Get(service, user string) ([]byte, error)
	Set(service, user string, secret []byte) error
	Delete(service, user string) error
}

// Namespaced prefixes every service name with the application identifier
// and turns ErrNotFound into a nil secret.
type Namespaced struct {
	prefix  string
	backend Store
}

func NewNamespaced(prefix string, backend Store) *Namespaced {
	return &Namespaced{prefix: prefix, backend: backend}
}

func (n *Namespaced) key(service string) string {
	if n.prefix == "" {
		return service
	}
	return n.prefix + "." + service
}

// Get returns nil, nil when the secret does not exist.
func (n *Namespaced) Get(service, user string) ([]byte, error) {
	secret, err := n.backend.Get(n.key(service), user)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secret %s: %w", service, err)
	}
	return secret, nil
}

func (n *Namespaced) GetString(service, user string) (string, error) {
	secret, err := n.Get(service, user)
	return string(secret), err
}

func (n *Namespaced) Set(service, user string, secret []byte) error {
	if err := n.backend.Set(n.key(service), user, secret); err != nil {
		return fmt.Errorf("writing secret %s: %w", service, err)
	}
	return nil
}

func (n *Namespaced) SetString(service, user, secret string) error {
	return n.Set(service, user, []byte(secret))
}

// Delete ignores missing secrets.
func (n *Namespaced) Delete(service, user string) error {
	err := n.backend.Delete(n.key(service), user)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting secret %s: %w", service, err)
	}
	return nil
}
