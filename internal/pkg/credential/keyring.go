package credential

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Keyring stores secrets in the operating system's credential store.
type Keyring struct {
	service string
}

func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

// Get implements Store.
func (k *Keyring) Get(account string) (string, error) {
	secret, err := keyring.Get(k.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read OS credential store: %w", err)
	}
	return secret, nil
}

// Set implements Store.
func (k *Keyring) Set(account, secret string) error {
	if err := keyring.Set(k.service, account, secret); err != nil {
		return fmt.Errorf("failed to write OS credential store: %w", err)
	}
	return nil
}

// Delete implements Store.
func (k *Keyring) Delete(account string) error {
	err := keyring.Delete(k.service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from OS credential store: %w", err)
	}
	return nil
}
