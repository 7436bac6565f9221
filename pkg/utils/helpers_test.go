package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDateRange(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	yesterday := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		start, end  time.Time
		wantStart   time.Time
		wantEnd     time.Time
		expectError bool
	}{
		{
			name:      "both missing",
			wantStart: yesterday,
			wantEnd:   yesterday,
		},
		{
			name:      "start given",
			start:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   yesterday,
		},
		{
			name:        "start after end",
			start:       time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
			end:         time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := DefaultDateRange(tt.start, tt.end, now)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(start), "start = %s", start)
			assert.True(t, tt.wantEnd.Equal(end), "end = %s", end)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-31", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("", time.UTC)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("31/01/2024", time.UTC)
	assert.Error(t, err)
}

func TestMonthsBetween(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, MonthsBetween(jan, jan))
	assert.Equal(t, 2, MonthsBetween(jan, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -13, MonthsBetween(jan, time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", FormatDuration(5*time.Second))
	assert.Equal(t, "8m 20s", FormatDuration(500*time.Second))
	assert.Equal(t, "1h 30m", FormatDuration(90*time.Minute))
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Initial: time.Second, Max: 5 * time.Second}
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
	assert.Equal(t, 5*time.Second, p.Backoff(10))
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}
	errTimeout := errors.New("timeout")
	always := func(error) bool { return true }

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		var retried []int
		err := Retry(context.Background(), policy, always,
			func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
			func(context.Context) error {
				calls++
				if calls < 3 {
					return errTimeout
				}
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("bounded", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, always, nil, func(context.Context) error {
			calls++
			return errTimeout
		})
		assert.Equal(t, 3, calls)
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.ErrorIs(t, err, errTimeout)
	})

	t.Run("non retryable returns immediately", func(t *testing.T) {
		calls := 0
		fatal := errors.New("no such element")
		err := Retry(context.Background(), policy,
			func(err error) bool { return errors.Is(err, errTimeout) }, nil,
			func(context.Context) error {
				calls++
				return fatal
			})
		assert.Equal(t, 1, calls)
		assert.Equal(t, fatal, err)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, policy, always, nil, func(context.Context) error { return errTimeout })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
