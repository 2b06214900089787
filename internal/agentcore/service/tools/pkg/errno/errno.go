package errno

import "errors"

var (
	// ErrRegistryNotReady is returned by Dispatch on a nil or unsealed registry.
	ErrRegistryNotReady = errors.New("tool registry not ready")
	ErrRegistrySealed   = errors.New("tool registry is sealed")
	ErrDuplicateTool    = errors.New("duplicate tool name")
	ErrInvalidGateway   = errors.New("invalid gateway config")
	ErrTargetNotFound   = errors.New("gateway target not found")
)

// IsDuplicate reports whether err is a duplicate registration.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateTool)
}
