package util

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by CallWithTimeout when fn did not return in time.
var ErrTimeout = errors.New("call timed out")

// CallWithTimeout runs fn in its own goroutine and waits at most d for it.
// fn receives a context that is cancelled on timeout, but blocking I/O
// that ignores the context keeps running in the background; callers must
// not start another call on the same resource until the previous one has
// returned (see the done channel).
//
// The returned channel is closed once fn has actually returned.
func CallWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, <-chan struct{}, error) {
	type result struct {
		val T
		err error
	}

	done := make(chan struct{})
	resc := make(chan result, 1)
	cctx, cancel := context.WithTimeout(ctx, d)

	go func() {
		defer close(done)
		defer cancel()
		val, err := fn(cctx)
		resc <- result{val: val, err: err}
	}()

	var zero T
	select {
	case res := <-resc:
		return res.val, done, res.err
	case <-cctx.Done():
		// fn may have finished in the same instant
		select {
		case res := <-resc:
			return res.val, done, res.err
		default:
		}
		if ctx.Err() != nil {
			return zero, done, ctx.Err()
		}
		return zero, done, ErrTimeout
	}
}
