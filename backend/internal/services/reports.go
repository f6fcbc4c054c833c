package services

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/policy"
	"task-tracker/backend/internal/repositories"
)

type ReportService interface {
	CreateReport(ctx context.Context, actor models.User, taskID uuid.UUID, content string) (models.Report, error)
	GetReport(ctx context.Context, actor models.User, id uuid.UUID) (models.Report, error)
	ListReports(ctx context.Context, actor models.User, filter repositories.ReportFilter) ([]models.Report, error)
	MyReports(ctx context.Context, actor models.User) ([]models.Report, error)
	TaskReports(ctx context.Context, actor models.User, taskID uuid.UUID) ([]models.Report, error)
	UpdateReport(ctx context.Context, actor models.User, id uuid.UUID, content string) (models.Report, error)
	DeleteReport(ctx context.Context, actor models.User, id uuid.UUID) error
}

type ReportServiceImpl struct {
	reports repositories.ReportStore
	tasks   repositories.TaskStore
}

func NewReportService(reports repositories.ReportStore, tasks repositories.TaskStore) *ReportServiceImpl {
	return &ReportServiceImpl{reports: reports, tasks: tasks}
}

// CreateReport rejects an unknown task as a validation error on the task
// field; authorization is then checked against the task's assignee.
func (s *ReportServiceImpl) CreateReport(ctx context.Context, actor models.User, taskID uuid.UUID, content string) (models.Report, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Report{}, policy.Invalid("task", "task does not exist")
		}
		return models.Report{}, err
	}

	report, err := policy.NewReport(actor, task, content)
	if err != nil {
		return models.Report{}, err
	}
	if err := s.reports.Create(ctx, &report); err != nil {
		return models.Report{}, err
	}
	return report, nil
}

func (s *ReportServiceImpl) GetReport(ctx context.Context, actor models.User, id uuid.UUID) (models.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return models.Report{}, err
	}
	if err := policy.CanReadReport(actor, report); err != nil {
		return models.Report{}, repositories.ErrNotFound
	}
	return report, nil
}

func (s *ReportServiceImpl) ListReports(ctx context.Context, actor models.User, filter repositories.ReportFilter) ([]models.Report, error) {
	return s.reports.List(ctx, policy.ReportScopeFor(actor), filter)
}

func (s *ReportServiceImpl) MyReports(ctx context.Context, actor models.User) ([]models.Report, error) {
	return s.reports.List(ctx, policy.MyReportsScope(actor), repositories.ReportFilter{})
}

// TaskReports lists reports on a task the actor can read, limited to the
// reports the actor can see.
func (s *ReportServiceImpl) TaskReports(ctx context.Context, actor models.User, taskID uuid.UUID) ([]models.Report, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanReadTask(actor, task); err != nil {
		return nil, repositories.ErrNotFound
	}
	return s.reports.List(ctx, policy.ReportScopeFor(actor), repositories.ReportFilter{TaskID: &taskID})
}

func (s *ReportServiceImpl) UpdateReport(ctx context.Context, actor models.User, id uuid.UUID, content string) (models.Report, error) {
	report, task, err := s.loadForChange(ctx, id)
	if err != nil {
		return models.Report{}, err
	}
	if err := policy.ValidateReportContent(content); err != nil {
		return models.Report{}, err
	}
	if err := policy.CanModifyReport(actor, task, report); err != nil {
		return models.Report{}, err
	}
	return s.reports.Update(ctx, id, map[string]interface{}{"content": content})
}

func (s *ReportServiceImpl) DeleteReport(ctx context.Context, actor models.User, id uuid.UUID) error {
	report, task, err := s.loadForChange(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CanModifyReport(actor, task, report); err != nil {
		return err
	}
	return s.reports.Delete(ctx, id)
}

// loadForChange skips the read scope; CanModifyReport decides and reports
// a denial as ForbiddenError.
func (s *ReportServiceImpl) loadForChange(ctx context.Context, id uuid.UUID) (models.Report, models.Task, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return models.Report{}, models.Task{}, err
	}
	task, err := s.tasks.GetByID(ctx, report.TaskID)
	if err != nil {
		return models.Report{}, models.Task{}, err
	}
	return report, task, nil
}
