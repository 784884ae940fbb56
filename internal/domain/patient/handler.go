package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/domain/access"
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

// RegisterRoutes mounts patient CRUD. Every role reads within its scope;
// only staff write.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := auth.RequireRole(string(access.RoleReceptionist))

	api.GET("/patients", h.List)
	api.GET("/patients/:id", h.Get)
	api.POST("/patients", h.Create, staff)
	api.PUT("/patients/:id", h.Update, staff)
	api.DELETE("/patients/:id", h.Delete, staff)
}

func (h *Handler) Create(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pt, err := h.svc.CreatePatient(c.Request().Context(), p, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, NewView(pt, h.svc.Today()))
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
	pt, err := h.svc.GetPatient(c.Request().Context(), p, id)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, NewView(pt, h.svc.Today()))
}

func (h *Handler) List(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := Filter{Search: c.QueryParam("search"), Gender: Gender(c.QueryParam("gender"))}
	items, total, err := h.svc.ListPatients(c.Request().Context(), p, f, pg.Limit, pg.Offset)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	now := h.svc.Today()
	views := make([]View, 0, len(items))
	for _, pt := range items {
		views = append(views, NewView(pt, now))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
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
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pt, err := h.svc.UpdatePatient(c.Request().Context(), p, id, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, NewView(pt, h.svc.Today()))
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
	if err := h.svc.DeletePatient(c.Request().Context(), p, id); err != nil {
		return apierr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
