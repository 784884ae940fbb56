package scheduling

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/domain/patient"
	"github.com/medcrm/clinic/internal/platform/apierr"
	"github.com/medcrm/clinic/internal/platform/auth"
	"github.com/medcrm/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole(string(access.RoleReceptionist))

	api.GET("/appointments", h.List)
	api.GET("/appointments/calendar", h.Calendar)
	api.GET("/appointments/:id", h.Get)
	api.POST("/appointments", h.Create, staff)
	api.PATCH("/appointments/:id", h.Update)
	api.DELETE("/appointments/:id", h.Delete, staff)
	api.POST("/patients/register", h.RegisterPatient, staff)
}

func (h *Handler) Create(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	var in CreateAppointmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), p, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, NewView(a))
}

type registerRequest struct {
	Patient     patient.Input          `json:"patient"`
	Appointment CreateAppointmentInput `json:"appointment"`
}

type registerResponse struct {
	Patient     patient.View `json:"patient"`
	Appointment View         `json:"appointment"`
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pt, a, err := h.svc.RegisterPatient(c.Request().Context(), p, req.Patient, req.Appointment)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, registerResponse{
		Patient:     patient.NewView(pt, time.Now().In(h.svc.loc)),
		Appointment: NewView(a),
	})
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
	a, err := h.svc.GetAppointment(c.Request().Context(), p, id)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, NewView(a))
}

func (h *Handler) List(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), p, f, pg.Limit, pg.Offset)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	views := make([]View, 0, len(items))
	for _, a := range items {
		views = append(views, NewView(a))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

// Calendar accepts start and end as RFC 3339 timestamps or YYYY-MM-DD dates.
func (h *Handler) Calendar(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	start, err := h.parseInstant(c.QueryParam("start"), "start")
	if err != nil {
		return err
	}
	end, err := h.parseInstant(c.QueryParam("end"), "end")
	if err != nil {
		return err
	}
	if start != nil {
		f.From = start
	}
	if end != nil {
		f.To = end
	}
	events, err := h.svc.Calendar(c.Request().Context(), p, f)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, events)
}

func (h *Handler) Update(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateAppointmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), p, id, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, NewView(a))
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), p, id); err != nil {
		return apierr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// filter reads list filters. date_from and date_to are inclusive calendar
// dates in the clinic zone.
func (h *Handler) filter(c echo.Context) (Filter, error) {
	var f Filter
	ids := []struct {
		name string
		dst  **uuid.UUID
	}{
		{"doctor_id", &f.DoctorID},
		{"department_id", &f.DepartmentID},
		{"patient_id", &f.PatientID},
	}
	for _, q := range ids {
		raw := c.QueryParam(q.name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, apierr.BadRequest(q.name, "invalid id")
		}
		*q.dst = &id
	}
	f.Status = Status(c.QueryParam("status"))
	f.Search = c.QueryParam("search")

	if raw := c.QueryParam("date_from"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, h.svc.loc)
		if err != nil {
			return f, apierr.BadRequest("date_from", "expected YYYY-MM-DD")
		}
		f.From = &d
	}
	if raw := c.QueryParam("date_to"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, h.svc.loc)
		if err != nil {
			return f, apierr.BadRequest("date_to", "expected YYYY-MM-DD")
		}
		next := d.AddDate(0, 0, 1)
		f.To = &next
	}
	return f, nil
}

const dateLayout = "2006-01-02"

func (h *Handler) parseInstant(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, h.svc.loc)
	if err != nil {
		return nil, apierr.BadRequest(field, "expected RFC 3339 timestamp or YYYY-MM-DD")
	}
	return &t, nil
}
