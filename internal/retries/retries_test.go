package retries

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManageRetries(t *testing.T) {
	testErr := errors.New("broker unreachable")
	testCases := []struct {
		name       string
		fn         func(attempts *int) func() (bool, error)
		assertions func(t *testing.T, attempts int, err error)
	}{
		{
			name: "success on first attempt",
			fn: func(attempts *int) func() (bool, error) {
				return func() (bool, error) {
					*attempts++
					return false, nil
				}
			},
			assertions: func(t *testing.T, attempts int, err error) {
				require.NoError(t, err)
				require.Equal(t, 1, attempts)
			},
		},
		{
			name: "non-retryable failure",
			fn: func(attempts *int) func() (bool, error) {
				return func() (bool, error) {
					*attempts++
					return false, testErr
				}
			},
			assertions: func(t *testing.T, attempts int, err error) {
				require.Equal(t, testErr, err)
				require.Equal(t, 1, attempts)
			},
		},
		{
			name: "success after retries",
			fn: func(attempts *int) func() (bool, error) {
				return func() (bool, error) {
					*attempts++
					if *attempts < 3 {
						return true, testErr
					}
					return false, nil
				}
			},
			assertions: func(t *testing.T, attempts int, err error) {
				require.NoError(t, err)
				require.Equal(t, 3, attempts)
			},
		},
		{
			name: "attempts exhausted",
			fn: func(attempts *int) func() (bool, error) {
				return func() (bool, error) {
					*attempts++
					return true, testErr
				}
			},
			assertions: func(t *testing.T, attempts int, err error) {
				require.Error(t, err)
				require.Equal(t, testErr, errors.Cause(err))
				require.Contains(t, err.Error(), "failed 5 attempt(s) to connect")
				require.Equal(t, 5, attempts)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var attempts int
			err := ManageRetries(
				context.Background(),
				zap.NewNop(),
				"connect",
				5,
				0, // No backoff
				testCase.fn(&attempts),
			)
			testCase.assertions(t, attempts, err)
		})
	}
}

func TestManageRetriesContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ManageRetries(
		ctx,
		zap.NewNop(),
		"connect",
		5,
		time.Minute,
		func() (bool, error) {
			return true, errors.New("broker unreachable")
		},
	)
	require.Equal(t, context.Canceled, err)
}

func TestJitteredExpBackoff(t *testing.T) {
	const maxDelay = 10 * time.Second
	for failures := uint8(1); failures < 10; failures++ {
		delay := JitteredExpBackoff(failures, maxDelay)
		require.Greater(t, delay, time.Duration(0))
		require.LessOrEqual(t, delay, maxDelay)
	}
}
