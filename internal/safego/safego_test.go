package safego

import (
	"testing"
	"time"
)

func waitOrFail(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not complete within timeout")
	}
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go("test-run", func() { close(done) })
	waitOrFail(t, done)
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	Go("test-panic", func() {
		defer close(done)
		panic("intentional panic in test")
	})
	waitOrFail(t, done)
}
