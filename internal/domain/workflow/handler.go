package workflow

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/apperr"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/pkg/pagination"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "technician", "pathologist"))
	readGroup.GET("/workflows", h.List)
	readGroup.GET("/workflows/:id", h.Get)
	readGroup.GET("/samples/:sampleId/workflow", h.GetBySample)

	writeGroup := api.Group("", auth.RequireRole("admin", "technician"))
	writeGroup.POST("/workflows/:id/advance", h.Advance)
	writeGroup.POST("/workflows/:id/steps/:index/complete", h.CompleteStep)
	writeGroup.POST("/workflows/:id/steps/:index/fail", h.FailStep)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	wf, err := h.engine.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *Handler) GetBySample(c echo.Context) error {
	sampleID, err := uuid.Parse(c.Param("sampleId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	wf, err := h.engine.GetBySample(c.Request().Context(), sampleID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.engine.List(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Advance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.engine.ProcessNextStep(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	wf, err := h.engine.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, wf)
}

type completeStepRequest struct {
	Result json.RawMessage `json:"result,omitempty"`
}

func (h *Handler) CompleteStep(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid step index")
	}
	var req completeStepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.engine.CompleteStep(c.Request().Context(), id, index, req.Result); err != nil {
		return apperr.ToHTTP(err)
	}
	wf, err := h.engine.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, wf)
}

type failStepRequest struct {
	Message string `json:"message"`
}

func (h *Handler) FailStep(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid step index")
	}
	var req failStepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		req.Message = "step failed"
	}
	if err := h.engine.FailStep(c.Request().Context(), id, index, req.Message); err != nil {
		return apperr.ToHTTP(err)
	}
	wf, err := h.engine.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, wf)
}
