package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"

	"task-tracker/backend/internal/middleware"
	"task-tracker/backend/internal/policy"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

type reportRequest struct {
	Task    string `json:"task"`
	Content string `json:"content"`
}

func (h *ReportHandler) CreateReport(c *gin.Context) {
	actor := middleware.MustActor(c)
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	taskID, err := uuid.FromString(req.Task)
	if err != nil {
		handleReportError(c, policy.Invalid("task", "must be a valid task id"))
		return
	}

	report, err := h.reportService.CreateReport(c.Request.Context(), actor, taskID, req.Content)
	if err != nil {
		handleReportError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentReport(report))
}

func (h *ReportHandler) GetReports(c *gin.Context) {
	actor := middleware.MustActor(c)

	var filter repositories.ReportFilter
	var err error
	if filter.TaskID, err = queryUUID(c, "task"); err != nil {
		handleReportError(c, err)
		return
	}
	if filter.ReportedBy, err = queryUUID(c, "reported_by"); err != nil {
		handleReportError(c, err)
		return
	}

	reports, err := h.reportService.ListReports(c.Request.Context(), actor, filter)
	if err != nil {
		handleReportError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentReports(reports))
}

func (h *ReportHandler) GetReportByID(c *gin.Context) {
	actor := middleware.MustActor(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.GetReport(c.Request.Context(), actor, id)
	if err != nil {
		handleReportError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentReport(report))
}

func (h *ReportHandler) MyReports(c *gin.Context) {
	actor := middleware.MustActor(c)

	reports, err := h.reportService.MyReports(c.Request.Context(), actor)
	if err != nil {
		handleReportError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentReports(reports))
}

// TaskReports handles GET /reports/task/:task_id.
func (h *ReportHandler) TaskReports(c *gin.Context) {
	actor := middleware.MustActor(c)
	taskID, ok := pathUUID(c, "task_id")
	if !ok {
		return
	}

	reports, err := h.reportService.TaskReports(c.Request.Context(), actor, taskID)
	if err != nil {
		handleServiceError(c, err, "task")
		return
	}
	c.JSON(http.StatusOK, presentReports(reports))
}

func (h *ReportHandler) UpdateReport(c *gin.Context) {
	actor := middleware.MustActor(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	report, err := h.reportService.UpdateReport(c.Request.Context(), actor, id, req.Content)
	if err != nil {
		handleReportError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentReport(report))
}

func (h *ReportHandler) DeleteReport(c *gin.Context) {
	actor := middleware.MustActor(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.reportService.DeleteReport(c.Request.Context(), actor, id); err != nil {
		handleReportError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
