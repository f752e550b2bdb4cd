package http

import (
	"errors"
	"net/http"

	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

// statusFor maps an engine error onto an HTTP status code
func statusFor(err error) int {
	var validationErr *domainwf.ValidationError
	var guardErr *domainwf.GuardError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainwf.ErrInvalidModule), errors.Is(err, domainwf.ErrInvalidStatus) && !isStoreError(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &guardErr):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrConflict), errors.Is(err, domainwf.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func isStoreError(err error) bool {
	var storeErr *domainwf.StoreError
	return errors.As(err, &storeErr)
}

// errorMessage hides internal failures and names the failed precondition otherwise
func errorMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
