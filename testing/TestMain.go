// Package testing puts every importing test binary into test mode, so the
// commands exit early and configuration loads without real secrets.
package testing

import (
	"os"
	stdtesting "testing"
)

var defaults = map[string]string{
	"AUTHZ_TEST_MODE": "1",
	"TOKEN_SECRET":    "test-secret-0123456789abcdef0123456789",
}

func init() {
	for key, value := range defaults {
		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs m after init has applied the defaults.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
