// Package testing puts the process in factoring test mode. Test packages
// import it for side effects.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// testEnv is applied only where the variable is unset, so a developer can
// still point a run at a real store.
var testEnv = map[string]string{
	"FACTORING_STORE": "memory",
	"REDIS_LOCK":      "false",
	"LOG_FORMAT":      "text",
}

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("FACTORING_TEST_MODE", "1")
		for key, value := range testEnv {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain lets a package use this as its test entry point.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
