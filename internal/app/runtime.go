package app

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "FACTORING_TEST_MODE"

// ErrEphemeralStore indicates a mutating command on the memory store, whose
// state would vanish when the process exits.
var ErrEphemeralStore = errors.New("memory store keeps no state between runs; set FACTORING_STORE=redis or postgres")

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether tests drive the process. Test mode skips .env
// loading and permits the memory store for every command.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads FACTORING_TEST_MODE after the environment changed.
func RefreshTestMode() {
	detectTestMode()
}

// RequirePersistentStore rejects the memory store outside test mode.
func (c *Config) RequirePersistentStore() error {
	if c != nil && c.Store == StoreMemory && !InTestMode() {
		return ErrEphemeralStore
	}
	return nil
}
