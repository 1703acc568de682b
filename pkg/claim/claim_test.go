package claim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoFirstAttemptWins(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), 5, func(ctx context.Context) (int, bool, error) {
		calls++
		return 42, true, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 1, calls)
}

func TestDoRetriesLostRaces(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), 5, func(ctx context.Context) (string, bool, error) {
		calls++
		return "key", calls == 3, nil
	})
	require.NoError(t, err)
	require.Equal(t, "key", v)
	require.Equal(t, 3, calls)
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 4, func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, nil
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, 4, calls)
}

func TestDoAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Do(context.Background(), 5, func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, 5, func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}
