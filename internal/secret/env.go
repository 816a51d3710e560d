package secret

import (
	"os"
	"strings"
	"sync"
)

// EnvStore reads secrets from environment variables. A key such as
// "slot:postgres" maps to HOTELMAP_SLOT_POSTGRES. Values set at runtime
// are kept in memory only.
type EnvStore struct {
	mu        sync.RWMutex
	overrides map[string][]byte
}

func NewEnvStore() *EnvStore {
	return &EnvStore{overrides: make(map[string][]byte)}
}

// EnvName returns the environment variable consulted for key.
func EnvName(key string) string {
	r := strings.NewReplacer(":", "_", "-", "_", ".", "_")
	return "HOTELMAP_" + strings.ToUpper(r.Replace(key))
}

func (e *EnvStore) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overrides[key] = append([]byte(nil), value...)
	return nil
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	e.mu.RLock()
	v, ok := e.overrides[key]
	e.mu.RUnlock()
	if ok {
		return v, nil
	}
	if s, ok := os.LookupEnv(EnvName(key)); ok {
		return []byte(s), nil
	}
	return nil, nil
}

func (e *EnvStore) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.overrides, key)
	return nil
}
