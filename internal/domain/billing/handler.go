package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/platform/apierr"
	"github.com/medcrm/clinic/internal/platform/auth"
	"github.com/medcrm/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
	loc *time.Location
}

// NewHandler returns the payments handler. loc is the clinic time zone used
// for date filters.
func NewHandler(svc *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/payments", h.List)
	api.GET("/payments/:id", h.Get)
	api.POST("/payments", h.Record, auth.RequireRole(string(access.RoleReceptionist)))
}

func (h *Handler) Record(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	var in RecordPaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pay, err := h.svc.RecordPayment(c.Request().Context(), p, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, NewView(pay))
}

func (h *Handler) Get(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pay, err := h.svc.GetPayment(c.Request().Context(), p, id)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, NewView(pay))
}

func (h *Handler) List(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	f := Filter{Method: Method(c.QueryParam("method")), Search: c.QueryParam("search")}
	if raw := c.QueryParam("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apierr.BadRequest("doctor_id", "invalid id")
		}
		f.DoctorID = &id
	}
	if raw := c.QueryParam("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apierr.BadRequest("department_id", "invalid id")
		}
		f.DepartmentID = &id
	}
	if raw := c.QueryParam("date_from"); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			return apierr.BadRequest("date_from", "expected YYYY-MM-DD")
		}
		f.From = &d
	}
	if raw := c.QueryParam("date_to"); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			return apierr.BadRequest("date_to", "expected YYYY-MM-DD")
		}
		next := d.AddDate(0, 0, 1)
		f.To = &next
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), p, f, pg.Limit, pg.Offset)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	views := make([]View, 0, len(items))
	for _, pay := range items {
		views = append(views, NewView(pay))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}
