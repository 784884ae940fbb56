package reporting

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/domain/access"
	"github.com/medcrm/clinic/internal/platform/apierr"
	"github.com/medcrm/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole(string(access.RoleReceptionist))

	r := api.Group("/reports")
	r.GET("/detailed", h.Detailed, staff)
	r.GET("/detailed.csv", h.DetailedCSV, staff)
	r.GET("/summary", h.Summary, staff)
	r.GET("/analytics", h.Analytics, staff)
	r.GET("/doctor-close", h.DoctorClose)

	api.GET("/patients/:id/history", h.PatientHistory)
}

func (h *Handler) period(c echo.Context) (Period, error) {
	period, err := h.svc.Period(PeriodKind(c.QueryParam("period")), c.QueryParam("date_from"), c.QueryParam("date_to"))
	if err != nil {
		return Period{}, apierr.ToHTTP(err)
	}
	return period, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apierr.BadRequest(name, "invalid id")
	}
	return &id, nil
}

func (h *Handler) detailed(c echo.Context) (*DetailedReport, error) {
	p, err := access.Require(c)
	if err != nil {
		return nil, err
	}
	period, err := h.period(c)
	if err != nil {
		return nil, err
	}
	f := DetailedFilter{Search: c.QueryParam("search"), Period: period}
	if f.DoctorID, err = optionalUUID(c, "doctor_id"); err != nil {
		return nil, err
	}
	if f.DepartmentID, err = optionalUUID(c, "department_id"); err != nil {
		return nil, err
	}
	rep, err := h.svc.BuildDetailedReport(c.Request().Context(), p, f)
	if err != nil {
		return nil, apierr.ToHTTP(err)
	}
	return rep, nil
}

func (h *Handler) Detailed(c echo.Context) error {
	rep, err := h.detailed(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

var csvHeader = []string{"№", "Дата", "Пациент", "Отделение", "Врач", "Услуга", "Способ оплаты", "Цена", "Сумма", "Бонус врача"}

func (h *Handler) DetailedCSV(c echo.Context) error {
	rep, err := h.detailed(c)
	if err != nil {
		return err
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="report_`+rep.DateFrom+`_`+rep.DateTo+`.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i, r := range rep.Rows {
		if err := w.Write([]string{
			strconv.Itoa(i + 1),
			r.Date,
			r.Patient,
			r.Department,
			r.Doctor,
			r.Service,
			r.MethodLabel,
			r.Price.String(),
			r.Amount.String(),
			strconv.Itoa(r.BonusPercent) + "%",
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// DoctorClose defaults doctor_id to the caller when the caller is a doctor.
func (h *Handler) DoctorClose(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	doctorID, err := optionalUUID(c, "doctor_id")
	if err != nil {
		return err
	}
	if doctorID == nil {
		if !p.IsDoctor() {
			return apierr.BadRequest("doctor_id", "doctor_id is required")
		}
		id := p.DoctorID()
		doctorID = &id
	}
	period, err := h.period(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.BuildDoctorCloseReport(c.Request().Context(), p, *doctorID, period)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Summary(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	period, err := h.period(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.BuildSummaryReport(c.Request().Context(), p, period)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Analytics(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	period, err := h.period(c)
	if err != nil {
		return err
	}
	a, err := h.svc.BuildAnalytics(c.Request().Context(), p, period)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	hist, err := h.svc.BuildPatientHistory(c.Request().Context(), p, id)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, hist)
}
