package testtype

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/apperr"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "technician", "pathologist"))
	readGroup.GET("/test-types", h.List)
	readGroup.GET("/test-types/:id", h.Get)

	writeGroup := api.Group("", auth.RequireRole("admin"))
	writeGroup.POST("/test-types", h.Create)
	writeGroup.PUT("/test-types/:id", h.Update)
	writeGroup.DELETE("/test-types/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var tt TestType
	if err := c.Bind(&tt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &tt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, tt)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, tt)
}

func (h *Handler) List(c echo.Context) error {
	// ?file_format=pdf resolves the parser configuration for one format.
	if format := c.QueryParam("file_format"); format != "" {
		tt, err := h.svc.GetByFormat(c.Request().Context(), format)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		return c.JSON(http.StatusOK, tt)
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var tt TestType
	if err := c.Bind(&tt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tt.ID = id
	if err := h.svc.Update(c.Request().Context(), &tt); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, tt)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
