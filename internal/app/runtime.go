package app

import (
	"os"
	"sync"
)

// TestModeEnv set to 1 makes the binaries exit before touching postgres or
// redis. The shared testing package sets it for every test binary.
const TestModeEnv = "LEDGER_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether runtime startup should be skipped.
func InTestMode() bool {
	return testMode()
}
