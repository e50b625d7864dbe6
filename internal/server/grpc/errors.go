package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/server/access"
)

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, access.ErrNotFound), errors.Is(err, common.ErrorNotFound):
		return codes.NotFound
	case errors.Is(err, access.ErrForbidden), errors.Is(err, common.ErrorForbidden):
		return codes.PermissionDenied
	case errors.Is(err, access.ErrAuthRequired), errors.Is(err, access.ErrInvalidCredentials),
		errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrorInactiveUser):
		return codes.Unauthenticated
	case errors.Is(err, access.ErrExpired):
		return codes.FailedPrecondition
	case errors.Is(err, access.ErrLimitReached):
		return codes.ResourceExhausted
	case errors.Is(err, common.ErrorValidation):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrAlreadyExists):
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

// toStatus converts err into a status error. The message of a decision
// error is its kind name, which clients match on; internal failures are
// not described.
func toStatus(err error) error {
	code := codeFor(err)
	switch {
	case code == codes.Internal:
		return status.Error(code, "internal error")
	case access.IsDecision(err):
		return status.Error(code, access.Kind(err))
	default:
		return status.Error(code, err.Error())
	}
}
