package api

import (
	"context"
	"errors"

	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/internal/usecase"
	xhttp "DefiGuard/pkg/http"
)

// toAppError maps usecase errors onto transport errors. The cause stays wrapped for logging.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domrepo.ErrResourceNotFound):
		return xhttp.NotFoundError("resource not found").WithError(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, usecase.ErrCollaborator):
		return xhttp.BadGatewayError("upstream collaborator failed").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
