package clinic

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
	svc *Catalog
}

func NewHandler(svc *Catalog) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the catalog. Reads are open to every role, staff
// write doctors and services, only an admin writes departments.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := auth.RequireRole(string(access.RoleAdmin))
	staff := auth.RequireRole(string(access.RoleReceptionist))

	api.GET("/departments", h.ListDepartments)
	api.GET("/departments/:id", h.GetDepartment)
	api.POST("/departments", h.CreateDepartment, admin)
	api.PATCH("/departments/:id", h.RenameDepartment, admin)
	api.DELETE("/departments/:id", h.DeleteDepartment, admin)
	api.GET("/price-list", h.PriceList)

	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
	api.POST("/doctors", h.CreateDoctor, staff)
	api.PATCH("/doctors/:id", h.UpdateDoctor, staff)
	api.DELETE("/doctors/:id", h.DeleteDoctor, staff)
	api.POST("/doctors/:id/photo", h.UploadDoctorPhoto, staff)

	api.GET("/services", h.ListServices)
	api.GET("/services/:id", h.GetService)
	api.POST("/services", h.CreateService, staff)
	api.PATCH("/services/:id", h.UpdateService, staff)
	api.DELETE("/services/:id", h.DeleteService, staff)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
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

// -- Departments --

type departmentRequest struct {
	Name string `json:"name"`
}

func (h *Handler) CreateDepartment(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	var req departmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.CreateDepartment(c.Request().Context(), p, req.Name)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDepartment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	items, err := h.svc.ListDepartments(c.Request().Context())
	if err != nil {
		return apierr.ToHTTP(err)
	}
	if items == nil {
		items = []*Department{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) RenameDepartment(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req departmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.RenameDepartment(c.Request().Context(), p, id, req.Name)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDepartment(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDepartment(c.Request().Context(), p, id); err != nil {
		return apierr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) PriceList(c echo.Context) error {
	list, err := h.svc.PriceList(c.Request().Context())
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, list)
}

// -- Doctors --

func (h *Handler) CreateDoctor(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	var in CreateDoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), p, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	dep, err := optionalUUID(c, "department_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := DoctorFilter{DepartmentID: dep, Search: c.QueryParam("search")}
	items, total, err := h.svc.ListDoctors(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateDoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), p, id, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

// UploadDoctorPhoto takes a multipart form with the image in field "photo".
func (h *Handler) UploadDoctorPhoto(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		return apierr.BadRequest("photo", "photo file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	d, err := h.svc.SetDoctorPhoto(c.Request().Context(), p, id, f)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), p, id); err != nil {
		return apierr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Services --

func (h *Handler) CreateService(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	var in ServiceInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	svc, err := h.svc.CreateService(c.Request().Context(), p, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, svc)
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	svc, err := h.svc.GetService(c.Request().Context(), id)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) ListServices(c echo.Context) error {
	dep, err := optionalUUID(c, "department_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ServiceFilter{DepartmentID: dep, Search: c.QueryParam("search")}
	items, total, err := h.svc.ListServices(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	if items == nil {
		items = []*Service{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateService(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ServiceInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	svc, err := h.svc.UpdateService(c.Request().Context(), p, id, in)
	if err != nil {
		return apierr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) DeleteService(c echo.Context) error {
	p, err := access.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteService(c.Request().Context(), p, id); err != nil {
		return apierr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
