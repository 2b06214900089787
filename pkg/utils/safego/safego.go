// Package safego launches goroutines that survive panics.
package safego

import (
	"context"
	"runtime/debug"

	"github.com/kiosk404/agentcore/pkg/logger"
)

// Go runs fn in a new goroutine and logs any panic with its stack.
func Go(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panic: %v\n%s", r, debug.Stack())
			}
		}()
		if ctx != nil && ctx.Err() != nil {
			return
		}
		fn()
	}()
}
