package errno

import (
	"errors"
)

var (
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
	ErrCancelled          = errors.New("run cancelled")
	ErrDeadlineExceeded   = errors.New("run deadline exceeded")
	ErrReasoner           = errors.New("reasoner failed")
	ErrSessionBusy        = errors.New("session busy")
	ErrEmptyPrompt        = errors.New("empty prompt")
	ErrInvalidTurn        = errors.New("invalid turn")
	ErrSessionForbidden   = errors.New("session belongs to another actor")
	ErrNoActiveRun        = errors.New("no run in progress")
)
