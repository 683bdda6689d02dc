package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/huiui/hello-antd-role/testing"
)

func TestTestModeFromEnvironment(t *testing.T) {
	require.True(t, InTestMode())
}
