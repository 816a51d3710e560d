package secret

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	keychainService = "hotelmap-slot"
	keychainTimeout = 5 * time.Second
	// security exits with 44 when the item does not exist
	errSecItemNotFound = 44
)

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool.
type KeychainStore struct{}

// NewKeychainStore creates a new KeychainStore.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{}
}

// Set stores a secret in the macOS Keychain, replacing any previous value.
func (k *KeychainStore) Set(key string, value []byte) error {
	out, err := security("add-generic-password",
		"-a", key,
		"-s", keychainService,
		"-l", "hotelmap "+key,
		"-w", string(value),
		"-U", // update if exists
	)
	if err != nil {
		return fmt.Errorf("keychain set: %s: %w", out, err)
	}
	return nil
}

// Get retrieves a secret from the macOS Keychain.
// Returns empty slice and nil error if the key doesn't exist.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := security("find-generic-password",
		"-a", key,
		"-s", keychainService,
		"-w", // output only the password
	)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == errSecItemNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get: %s: %w", out, err)
	}
	return []byte(out), nil
}

// Delete removes a secret from the macOS Keychain. A missing item is not an error.
func (k *KeychainStore) Delete(key string) error {
	out, err := security("delete-generic-password",
		"-a", key,
		"-s", keychainService,
	)
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == errSecItemNotFound) {
		return fmt.Errorf("keychain delete: %s: %w", out, err)
	}
	return nil
}

func security(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), keychainTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "security", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
