package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatest_Empty(t *testing.T) {
	l := NewLatest[int]()
	v, version := l.Load()
	assert.Equal(t, 0, v)
	assert.Equal(t, uint64(0), version)
}

func TestLatest_PublishAndLoad(t *testing.T) {
	l := NewLatest[string]()
	l.Publish("first")
	l.Publish("second")

	v, version := l.Load()
	assert.Equal(t, "second", v)
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, "second", l.Value())
}

func TestLatest_NotificationsCoalesce(t *testing.T) {
	l := NewLatest[int]()
	l.Publish(1)
	l.Publish(2)
	l.Publish(3)

	select {
	case <-l.Changed():
	default:
		t.Fatal("should have received a notification")
	}
	select {
	case <-l.Changed():
		t.Fatal("notifications should have been coalesced")
	default:
	}
	assert.Equal(t, 3, l.Value())
}

func TestLatest_ConcurrentReaderSeesMonotonicVersions(t *testing.T) {
	l := NewLatest[int]()
	done := make(chan struct{})

	go func() {
		for i := 1; i <= 1000; i++ {
			l.Publish(i)
		}
		close(done)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var last uint64
		for {
			select {
			case <-l.Changed():
				v, version := l.Load()
				if version < last {
					t.Errorf("version went backwards: %d after %d", version, last)
				}
				if uint64(v) != version {
					t.Errorf("value %d does not match version %d", v, version)
				}
				last = version
			case <-done:
				return
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, 1000, l.Value())
}
