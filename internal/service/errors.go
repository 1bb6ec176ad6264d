package service

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/triage-service/internal/access"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

var errNoDepartment = apperrors.NewForbidden("staff profile has no department access")

// mapRepoError translates repository sentinels into API errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", nil)
	case errors.Is(err, repository.ErrAccessDenied):
		return apperrors.NewForbidden("ticket is outside your department scope")
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewRetryableConflict("ticket was modified concurrently; reload and retry", err)
	}
	return apperrors.MapError(err)
}

// staffScope resolves the caller's scope and rejects profiles without access.
func staffScope(profile *domain.Profile) (access.Scope, error) {
	scope := access.ScopeFor(profile)
	if scope.IsDenied() {
		return scope, errNoDepartment
	}
	return scope, nil
}

func fieldValidationError(err error) error {
	var fe *domain.FieldError
	if errors.As(err, &fe) {
		return apperrors.NewValidationError(fe.Error(), map[string]any{"field": fe.Field, "reason": fe.Reason})
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		details := make(map[string]any, len(ves))
		for _, ve := range ves {
			details[ve.Field()] = ve.Tag()
		}
		return apperrors.NewValidationError("invalid input", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}
