package access

import (
	"errors"
	"fmt"
)

// Decision kinds returned by Evaluate. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("link not found")
	ErrForbidden          = errors.New("forbidden")
	ErrAuthRequired       = errors.New("authentication required")
	ErrExpired            = errors.New("link expired")
	ErrLimitReached       = errors.New("access limit reached")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Both wrap ErrForbidden so transports only need one mapping.
	ErrDownloadNotAllowed = fmt.Errorf("download not allowed: %w", ErrForbidden)
	ErrNotPermitted       = fmt.Errorf("requester not in link audience: %w", ErrForbidden)
)

// Kind names the decision carried by err, for metrics and logs.
// Errors that are not decisions report "internal"; nil reports "allowed".
func Kind(err error) string {
	switch {
	case err == nil:
		return "allowed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrLimitReached):
		return "limit_reached"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "internal"
	}
}

// IsDecision reports whether err is one of the deny kinds above.
func IsDecision(err error) bool {
	k := Kind(err)
	return k != "allowed" && k != "internal"
}
