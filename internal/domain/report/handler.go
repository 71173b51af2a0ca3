package report

import (
	"net/http"

	"github.com/google/uuid"
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
	readGroup.GET("/reports", h.List)
	readGroup.GET("/reports/:id", h.Get)
	readGroup.GET("/samples/:sampleId/reports", h.ListBySample)
	readGroup.GET("/report-templates", h.ListTemplates)
	readGroup.GET("/report-templates/:id", h.GetTemplate)

	pathGroup := api.Group("", auth.RequireRole("admin", "pathologist"))
	pathGroup.POST("/samples/:sampleId/reports", h.Generate)
	pathGroup.POST("/reports/:id/finalize", h.Finalize)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/report-templates", h.CreateTemplate)
}

type generateRequest struct {
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

func (h *Handler) Generate(c echo.Context) error {
	sampleID, err := uuid.Parse(c.Param("sampleId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	generatedBy := auth.UserIDFromContext(c.Request().Context())
	rep, err := h.svc.Generate(c.Request().Context(), sampleID, req.TemplateID, generatedBy)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, rep)
}

func (h *Handler) Finalize(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	finalizedBy := auth.UserIDFromContext(c.Request().Context())
	rep, err := h.svc.Finalize(c.Request().Context(), id, finalizedBy)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rep, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListBySample(c echo.Context) error {
	sampleID, err := uuid.Parse(c.Param("sampleId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	items, err := h.svc.ListBySample(c.Request().Context(), sampleID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var tpl Template
	if err := c.Bind(&tpl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tpl.CreatedBy = auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.CreateTemplate(c.Request().Context(), &tpl); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, tpl)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tpl, err := h.svc.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, tpl)
}

func (h *Handler) ListTemplates(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	items, err := h.svc.ListTemplates(c.Request().Context(), activeOnly)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}
