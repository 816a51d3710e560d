package secret

import (
	"fmt"
	"runtime"
)

// SecretStore provides a pluggable interface for storing sensitive data
// such as slot database passwords. KeychainStore is used on macOS and
// EnvStore everywhere else.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// SlotPasswordKey is the secret key holding the password for a slot driver.
func SlotPasswordKey(driver string) string {
	return "slot:" + driver
}

// SlotPassword looks up the password for driver, returning "" when unset.
func SlotPassword(s SecretStore, driver string) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := s.Get(SlotPasswordKey(driver))
	if err != nil {
		return "", fmt.Errorf("get slot password: %w", err)
	}
	return string(b), nil
}

// Default returns the platform secret store.
func Default() SecretStore {
	if runtime.GOOS == "darwin" {
		return NewKeychainStore()
	}
	return NewEnvStore()
}
