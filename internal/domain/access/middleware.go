package access

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/domain"
	"github.com/medcrm/clinic/internal/platform/auth"
)

type policyKey struct{}

// DoctorResolver finds the doctor profile linked to a user account.
type DoctorResolver interface {
	DoctorIDByUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

func WithPolicy(ctx context.Context, p Policy) context.Context {
	return context.WithValue(ctx, policyKey{}, p)
}

func FromContext(ctx context.Context) (Policy, bool) {
	p, ok := ctx.Value(policyKey{}).(Policy)
	return p, ok && p.Valid()
}

// Middleware builds the caller's Policy once per request from the
// authenticated user. Unauthenticated requests pass through untouched.
func Middleware(doctors DoctorResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID, ok := auth.UserIDFromContext(ctx)
			if !ok {
				return next(c)
			}

			p, err := Resolve(ctx, doctors, userID, auth.RoleFromContext(ctx))
			if err != nil {
				if domain.IsNotFound(err) {
					return echo.NewHTTPError(http.StatusForbidden, "doctor profile is missing")
				}
				if _, bad := err.(*roleError); bad {
					return echo.NewHTTPError(http.StatusForbidden, err.Error())
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "resolve access policy").SetInternal(err)
			}

			c.SetRequest(c.Request().WithContext(WithPolicy(ctx, p)))
			return next(c)
		}
	}
}

type roleError struct{ role string }

func (e *roleError) Error() string { return "unknown role " + e.role }

// Resolve maps a user and role to a Policy.
func Resolve(ctx context.Context, doctors DoctorResolver, userID uuid.UUID, role string) (Policy, error) {
	r, err := ParseRole(role)
	if err != nil {
		return Policy{}, &roleError{role: role}
	}
	switch r {
	case RoleAdmin:
		return Admin(userID), nil
	case RoleReceptionist:
		return Receptionist(userID), nil
	default:
		doctorID, err := doctors.DoctorIDByUser(ctx, userID)
		if err != nil {
			return Policy{}, err
		}
		return Doctor(userID, doctorID), nil
	}
}

// Require returns the request's Policy or a 401.
func Require(c echo.Context) (Policy, error) {
	p, ok := FromContext(c.Request().Context())
	if !ok {
		return Policy{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}
