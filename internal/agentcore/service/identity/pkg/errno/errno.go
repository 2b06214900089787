package errno

import "errors"

var (
	// ErrIdentityUnavailable means the identity service could not be reached after retries.
	ErrIdentityUnavailable = errors.New("identity service unavailable")
	// ErrScopeDenied means the identity service rejected the requested scope.
	ErrScopeDenied = errors.New("scope denied by identity service")
	// ErrSecretNotFound means no secret store had the key.
	ErrSecretNotFound = errors.New("secret not found")
)
