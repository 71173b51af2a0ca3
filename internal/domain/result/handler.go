package result

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/apperr"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/pkg/pagination"
)

type Handler struct {
	svc       *Service
	processor *Processor
}

func NewHandler(svc *Service, processor *Processor) *Handler {
	return &Handler{svc: svc, processor: processor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "technician", "pathologist"))
	readGroup.GET("/results", h.List)
	readGroup.GET("/results/:id", h.Get)
	readGroup.GET("/samples/:sampleId/results", h.ListBySample)

	techGroup := api.Group("", auth.RequireRole("admin", "technician"))
	techGroup.POST("/results", h.Create)
	techGroup.POST("/samples/:sampleId/process-report", h.ProcessReport)

	reviewGroup := api.Group("", auth.RequireRole("admin", "pathologist"))
	reviewGroup.POST("/results/:id/review", h.Review)
}

func (h *Handler) Create(c echo.Context) error {
	var input CreateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Create(c.Request().Context(), input)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
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

type reviewRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (h *Handler) Review(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reviewer := auth.UserIDFromContext(c.Request().Context())
	res, err := h.svc.Review(c.Request().Context(), id, reviewer, req.Notes)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

type processReportRequest struct {
	FilePath string `json:"file_path"`
}

func (h *Handler) ProcessReport(c echo.Context) error {
	sampleID, err := uuid.Parse(c.Param("sampleId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	var req processReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.FilePath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_path is required")
	}
	processedBy := auth.UserIDFromContext(c.Request().Context())
	res, err := h.processor.ProcessReport(c.Request().Context(), sampleID, req.FilePath, processedBy)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	// 202: the placeholder is returned while extraction continues.
	return c.JSON(http.StatusAccepted, res)
}
