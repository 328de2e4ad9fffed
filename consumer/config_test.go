package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetConfigFromEnvironment(t *testing.T) {
	testCases := []struct {
		name       string
		setup      func(t *testing.T)
		assertions func(*testing.T, Config, error)
	}{
		{
			name:  "defaults",
			setup: func(t *testing.T) {},
			assertions: func(t *testing.T, config Config, err error) {
				require.NoError(t, err)
				require.Equal(t, 1, config.MaxConcurrentCalls)
				require.Equal(t, 5, config.MaxAttempts)
				require.Equal(t, 10*time.Second, config.RetryDelay)
				require.Equal(t, 9090, config.MetricsPort)
			},
		},
		{
			name: "overrides",
			setup: func(t *testing.T) {
				t.Setenv("CONSUMER_MAX_CONCURRENT_CALLS", "4")
				t.Setenv("CONSUMER_MAX_ATTEMPTS", "2")
				t.Setenv("CONSUMER_RETRY_DELAY", "1m")
				t.Setenv("CONSUMER_METRICS_PORT", "0")
			},
			assertions: func(t *testing.T, config Config, err error) {
				require.NoError(t, err)
				require.Equal(t, 4, config.MaxConcurrentCalls)
				require.Equal(t, 2, config.MaxAttempts)
				require.Equal(t, time.Minute, config.RetryDelay)
				require.Equal(t, 0, config.MetricsPort)
			},
		},
		{
			name: "zero concurrent calls",
			setup: func(t *testing.T) {
				t.Setenv("CONSUMER_MAX_CONCURRENT_CALLS", "0")
			},
			assertions: func(t *testing.T, _ Config, err error) {
				require.Error(t, err)
				require.Contains(t, err.Error(), "CONSUMER_MAX_CONCURRENT_CALLS")
			},
		},
		{
			name: "zero attempts",
			setup: func(t *testing.T) {
				t.Setenv("CONSUMER_MAX_ATTEMPTS", "0")
			},
			assertions: func(t *testing.T, _ Config, err error) {
				require.Error(t, err)
				require.Contains(t, err.Error(), "CONSUMER_MAX_ATTEMPTS")
			},
		},
		{
			name: "unparsable retry delay",
			setup: func(t *testing.T) {
				t.Setenv("CONSUMER_RETRY_DELAY", "soon")
			},
			assertions: func(t *testing.T, _ Config, err error) {
				require.Error(t, err)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			testCase.setup(t)
			config, err := GetConfigFromEnvironment()
			testCase.assertions(t, config, err)
		})
	}
}
