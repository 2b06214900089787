package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/pkg/errno"
	"github.com/kiosk404/agentcore/pkg/logger"
)

// AbortController manages run cancellation and timeout.
//
// It wraps the caller's context with the run timeout and tells apart the
// two ways a run can stop early:
//   - cancellation, either by the caller or by Abort
//   - deadline, the run timeout or an earlier caller deadline
type AbortController struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	down   bool
	runID  string
}

// NewAbortController creates a new AbortController.
//
// If timeout is greater than 0 the context expires after it, unless the
// parent already has an earlier deadline.
func NewAbortController(parent context.Context, runID string, timeout time.Duration) *AbortController {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &AbortController{
		ctx:    ctx,
		cancel: cancel,
		runID:  runID,
	}
}

// Context returns the controlled context.
// Use this context for all downstream operations.
func (ac *AbortController) Context() context.Context {
	return ac.ctx
}

// Abort cancels the run. It is safe to call Abort multiple times.
func (ac *AbortController) Abort() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.down {
		return
	}
	ac.down = true
	ac.cancel()
	logger.InfoX(moduleName, "abort run %s", ac.runID)
}

// Err returns nil while the run may continue, errno.ErrDeadlineExceeded once
// a deadline passed and errno.ErrCancelled otherwise.
func (ac *AbortController) Err() error {
	ac.mu.Lock()
	aborted := ac.down
	ac.mu.Unlock()
	if aborted {
		return errno.ErrCancelled
	}
	switch err := ac.ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return errno.ErrDeadlineExceeded
	default:
		return errno.ErrCancelled
	}
}

// CleanUp releases the context resources.
func (ac *AbortController) CleanUp() {
	ac.cancel()
}
