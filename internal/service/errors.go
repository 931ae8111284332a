package service

import (
	"context"
	"errors"

	"fishmarket/internal/apperror"
	"fishmarket/internal/repository"
)

// translate maps repository sentinels onto the public error taxonomy. Anything unrecognised is a
// backend failure and is reported as transient so the caller may retry.
func translate(err error, message string) error {
	if err == nil {
		return nil
	}
	if apperror.As(err) != nil {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrListingNotFound),
		errors.Is(err, repository.ErrOfferNotFound),
		errors.Is(err, repository.ErrOrderNotFound):
		return apperror.Wrap(apperror.CodeNotFound, err, err.Error())
	case errors.Is(err, repository.ErrUserAlreadyExists),
		errors.Is(err, repository.ErrReviewAlreadyExists),
		errors.Is(err, repository.ErrListingInUse),
		errors.Is(err, repository.ErrUserHasHistory):
		return apperror.Wrap(apperror.CodeConflict, err, err.Error())
	case errors.Is(err, repository.ErrOfferStatusConflict):
		return apperror.Wrap(apperror.CodeInvalidState, err, "offer is no longer pending")
	case errors.Is(err, repository.ErrInsufficientQuantity):
		return apperror.Wrap(apperror.CodeInvalidState, err, "listing does not have enough quantity left")
	case errors.Is(err, repository.ErrOrderStatusConflict):
		return apperror.Wrap(apperror.CodeInvalidTransition, err, "order status changed, reload and retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperror.Transient(err, "request cancelled before completion")
	default:
		return apperror.Transient(err, message)
	}
}
