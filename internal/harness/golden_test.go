package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGolden_RetryAfterFailure(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/retry_after_failure.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
}
