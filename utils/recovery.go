package utils

import (
	"runtime/debug"

	"github.com/defenra/bidi/logger"
)

// SafeGo starts a goroutine with panic recovery
func SafeGo(fn func(), name string) {
	go func() {
		defer Recover(name, nil)
		fn()
	}()
}

// Recover must be deferred. It logs a panic with its stack and hands the
// recovered value to onPanic, if set.
func Recover(name string, onPanic func(v any)) {
	if r := recover(); r != nil {
		logger.GetRateLimitedLogger().PrintfCritical("Panic in %s: %v\n%s", name, r, string(debug.Stack()))
		if onPanic != nil {
			onPanic(r)
		}
	}
}
