package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeGoRecovers(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() {
		defer close(done)
		panic("boom")
	}, "test")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}

func TestRecoverReportsValue(t *testing.T) {
	var got any
	func() {
		defer Recover("inline", func(v any) { got = v })
		panic("handler failed")
	}()
	assert.Equal(t, "handler failed", got)
}

func TestRecoverWithoutPanic(t *testing.T) {
	called := false
	func() {
		defer Recover("quiet", func(any) { called = true })
	}()
	assert.False(t, called)
}
