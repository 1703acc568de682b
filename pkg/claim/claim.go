package claim

import (
	"context"
	"errors"
)

// ErrExhausted reports that every attempt lost its race.
var ErrExhausted = errors.New("claim: attempts exhausted")

// Do runs fn up to attempts times. fn reports ok=false when its
// conditional update touched no rows, which means another claimer won
// the race and the attempt should be retried against fresh state. Any
// error aborts immediately.
func Do[T any](ctx context.Context, attempts int, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, ok, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
	}

	return zero, ErrExhausted
}
