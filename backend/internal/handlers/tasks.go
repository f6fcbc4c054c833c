package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"

	"task-tracker/backend/internal/middleware"
	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/policy"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor := middleware.MustActor(c)
	input, err := bindTaskInput(c)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), actor, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentTask(task))
}

// GetTasks lists the caller's visible tasks, narrowed by the optional
// status, assigned_to and created_by query parameters.
func (h *TaskHandler) GetTasks(c *gin.Context) {
	actor := middleware.MustActor(c)

	var filter repositories.TaskFilter
	if status := c.Query("status"); status != "" {
		s := models.TaskStatus(status)
		filter.Status = &s
	}
	var err error
	if filter.AssignedTo, err = queryUUID(c, "assigned_to"); err != nil {
		handleTaskError(c, err)
		return
	}
	if filter.CreatedBy, err = queryUUID(c, "created_by"); err != nil {
		handleTaskError(c, err)
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), actor, filter)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTasks(tasks))
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	actor := middleware.MustActor(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), actor, id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTask(task))
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	actor := middleware.MustActor(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	input, err := bindTaskInput(c)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), actor, id, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTask(task))
}

// UpdateStatus handles PATCH /tasks/:id/status.
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	actor := middleware.MustActor(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.UpdateStatus(c.Request.Context(), actor, id, models.TaskStatus(req.Status))
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTask(task))
}

// UpdateCompletion handles PATCH /tasks/:id/completion. The percentage may
// arrive as a JSON number or a numeric string.
func (h *TaskHandler) UpdateCompletion(c *gin.Context) {
	actor := middleware.MustActor(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	raw, err := bindRawObject(c)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	value, err := decodeLoose(raw["completion_percentage"])
	if err != nil {
		handleTaskError(c, err)
		return
	}
	percentage, err := policy.ParsePercentage(value)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	task, err := h.taskService.UpdateCompletion(c.Request.Context(), actor, id, percentage)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTask(task))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	actor := middleware.MustActor(c)
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), actor, id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) MyTasks(c *gin.Context) {
	actor := middleware.MustActor(c)

	tasks, err := h.taskService.MyTasks(c.Request.Context(), actor)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTasks(tasks))
}

func (h *TaskHandler) DashboardStats(c *gin.Context) {
	actor := middleware.MustActor(c)

	stats, err := h.taskService.DashboardStats(c.Request.Context(), actor)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// bindTaskInput decodes a task payload keeping the difference between an
// absent key and an explicit null. Read-only keys are ignored.
func bindTaskInput(c *gin.Context) (services.TaskInput, error) {
	var input services.TaskInput

	raw, err := bindRawObject(c)
	if err != nil {
		return input, err
	}

	if v, ok := raw["title"]; ok {
		var title string
		if err := json.Unmarshal(v, &title); err != nil {
			return input, policy.Invalid("title", "must be a string")
		}
		input.Title = &title
	}
	if v, ok := raw["description"]; ok {
		var description *string
		if err := json.Unmarshal(v, &description); err != nil {
			return input, policy.Invalid("description", "must be a string")
		}
		if description == nil {
			description = new(string)
		}
		input.Description = description
	}
	if v, ok := raw["status"]; ok {
		var status models.TaskStatus
		if err := json.Unmarshal(v, &status); err != nil {
			return input, policy.Invalid("status", "invalid status")
		}
		input.Status = &status
	}
	if v, ok := raw["completion_percentage"]; ok {
		value, err := decodeLoose(v)
		if err != nil {
			return input, err
		}
		p, err := policy.ParsePercentage(value)
		if err != nil {
			return input, err
		}
		input.CompletionPercentage = &p
	}
	if v, ok := raw["assigned_to"]; ok {
		input.AssignedToSet = true
		var id *string
		if err := json.Unmarshal(v, &id); err != nil {
			return input, policy.Invalid("assigned_to", "must be a user id")
		}
		if id != nil && *id != "" {
			parsed, err := uuid.FromString(*id)
			if err != nil {
				return input, policy.Invalid("assigned_to", "must be a user id")
			}
			input.AssignedTo = &parsed
		}
	}
	if v, ok := raw["due_date"]; ok {
		input.DueDateSet = true
		due, err := parseDueDate(v)
		if err != nil {
			return input, err
		}
		input.DueDate = due
	}
	return input, nil
}

func bindRawObject(c *gin.Context) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		return nil, policy.Invalid("", "request body must be a JSON object")
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}

// decodeLoose decodes a raw JSON value keeping numbers as json.Number.
func decodeLoose(v json.RawMessage) (interface{}, error) {
	if len(v) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, policy.Invalid("completion_percentage", "must be a valid number")
	}
	return out, nil
}

var dueDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDueDate(v json.RawMessage) (*time.Time, error) {
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, policy.Invalid("due_date", "must be a date string")
	}
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, policy.Invalid("due_date", "must be an ISO 8601 date")
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return uuid.Nil, false
	}
	return id, true
}

func queryUUID(c *gin.Context, name string) (*uuid.UUID, error) {
	value := c.Query(name)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.FromString(value)
	if err != nil {
		return nil, policy.Invalid(name, "must be a valid id")
	}
	return &id, nil
}
