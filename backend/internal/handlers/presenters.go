package handlers

import (
	"time"

	"github.com/gofrs/uuid"

	"task-tracker/backend/internal/models"
)

type TaskResponse struct {
	ID                   uuid.UUID         `json:"id"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	Status               models.TaskStatus `json:"status"`
	CompletionPercentage int               `json:"completion_percentage"`
	CreatedBy            uuid.UUID         `json:"created_by"`
	AssignedTo           *uuid.UUID        `json:"assigned_to"`
	CreatedByName        string            `json:"created_by_name"`
	AssignedToName       *string           `json:"assigned_to_name"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	DueDate              *time.Time        `json:"due_date"`
}

func presentTask(task models.Task) TaskResponse {
	resp := TaskResponse{
		ID:                   task.ID,
		Title:                task.Title,
		Description:          task.Description,
		Status:               task.Status,
		CompletionPercentage: task.CompletionPercentage,
		CreatedBy:            task.CreatedByID,
		AssignedTo:           task.AssignedToID,
		CreatedAt:            task.CreatedAt,
		UpdatedAt:            task.UpdatedAt,
		DueDate:              task.DueDate,
	}
	if task.CreatedBy != nil {
		resp.CreatedByName = task.CreatedBy.FullName()
	}
	if task.AssignedTo != nil {
		name := task.AssignedTo.FullName()
		resp.AssignedToName = &name
	}
	return resp
}

func presentTasks(tasks []models.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, presentTask(t))
	}
	return out
}

type ReportResponse struct {
	ID                 uuid.UUID `json:"id"`
	Task               uuid.UUID `json:"task"`
	ReportedBy         uuid.UUID `json:"reported_by"`
	ReportedByName     string    `json:"reported_by_name"`
	ReportedByUsername string    `json:"reported_by_username"`
	Content            string    `json:"content"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func presentReport(report models.Report) ReportResponse {
	resp := ReportResponse{
		ID:         report.ID,
		Task:       report.TaskID,
		ReportedBy: report.ReportedByID,
		Content:    report.Content,
		CreatedAt:  report.CreatedAt,
		UpdatedAt:  report.UpdatedAt,
	}
	if report.ReportedBy != nil {
		resp.ReportedByName = report.ReportedBy.FullName()
		resp.ReportedByUsername = report.ReportedBy.Username
	}
	return resp
}

func presentReports(reports []models.Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, presentReport(r))
	}
	return out
}

type UserResponse struct {
	ID        uuid.UUID   `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      models.Role `json:"role"`
	IsManager bool        `json:"is_manager"`
	CreatedAt time.Time   `json:"created_at"`
}

func presentUser(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		IsManager: user.IsManager(),
		CreatedAt: user.CreatedAt,
	}
}
