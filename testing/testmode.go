// Package testing flips the process into test mode when blank imported by a
// test binary, so entrypoints skip runtime side effects.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("GOTENBERG_URL") == "" {
			_ = os.Setenv("GOTENBERG_URL", "http://127.0.0.1:0")
		}
		if os.Getenv("LEDGER_API_URL") == "" {
			_ = os.Setenv("LEDGER_API_URL", "http://127.0.0.1:0/api")
		}
	})
}

func init() {
	ensureTestMode()
}
