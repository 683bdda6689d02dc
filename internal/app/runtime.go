package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv makes the binaries return before dialing Postgres or Redis.
const TestModeEnv = "AUTHZ_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
})

// InTestMode reports whether the application should skip runtime side effects.
// The environment is read once per process.
func InTestMode() bool {
	return testMode()
}
