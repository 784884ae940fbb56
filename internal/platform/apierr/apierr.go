package apierr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/domain"
)

// ToHTTP maps domain errors to HTTP errors. Validation failures become 400
// with the offending field, missing entities 404, and anything else a 500
// whose cause stays attached for logging.
func ToHTTP(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	if v, ok := domain.AsValidation(err); ok {
		return echo.NewHTTPError(http.StatusBadRequest, v)
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return echo.NewHTTPError(http.StatusNotFound, map[string]string{"message": nf.Error()})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

// BadRequest is a shortcut for malformed input caught in handlers.
func BadRequest(field, message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, &domain.ValidationError{Field: field, Message: message})
}
