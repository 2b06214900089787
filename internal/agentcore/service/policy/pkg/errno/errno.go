package errno

import "errors"

var (
	ErrInvalidRuleSet = errors.New("invalid policy rule set")
	ErrInvalidMode    = errors.New("invalid policy mode")
	ErrAuditClosed    = errors.New("audit sink closed")
)
