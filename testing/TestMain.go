// Package testing is blank-imported by test binaries so that commands and
// configuration run in test mode with a deterministic reversal mode.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var defaults = map[string]string{
	"LEDGER_TEST_MODE":     "1",
	"LEDGER_REVERSAL_MODE": "reversing_entry",
	"LOG_FORMAT":           "json",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range defaults {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be assigned by packages that need an explicit entry point.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
