package repository

import (
	"context"
	"errors"
	"time"
)

const conflictBackoff = 5 * time.Millisecond

// RunInTx runs fn through store.WithTx and retries the whole unit of work up
// to attempts times while it fails with ErrConflict. fn must not keep state
// from a previous attempt.
func RunInTx(ctx context.Context, store Store, attempts int, fn func(ctx context.Context, tx Tx) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = store.WithTx(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(i+1) * conflictBackoff):
		}
	}
	return err
}
