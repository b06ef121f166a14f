package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallWithTimeout_Result(t *testing.T) {
	v, done, err := CallWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	<-done
}

func TestCallWithTimeout_Error(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := CallWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCallWithTimeout_Timeout(t *testing.T) {
	release := make(chan struct{})
	start := time.Now()
	_, done, err := CallWithTimeout(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
		<-release // ignores its context like a hung bus transfer
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-done:
		t.Fatal("done must stay open while fn is still running")
	default:
	}
	close(release)
	<-done
}

func TestCallWithTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, done, err := CallWithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	<-done
}
