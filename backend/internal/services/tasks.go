package services

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/policy"
	"task-tracker/backend/internal/repositories"
)

// TaskInput is a decoded create or edit payload. Nil pointers are absent
// fields; AssignedTo and DueDate use Set flags because null clears them.
type TaskInput struct {
	Title                *string
	Description          *string
	Status               *models.TaskStatus
	CompletionPercentage *int

	AssignedToSet bool
	AssignedTo    *uuid.UUID

	DueDateSet bool
	DueDate    *time.Time
}

type TaskService interface {
	CreateTask(ctx context.Context, actor models.User, input TaskInput) (models.Task, error)
	GetTask(ctx context.Context, actor models.User, id uuid.UUID) (models.Task, error)
	ListTasks(ctx context.Context, actor models.User, filter repositories.TaskFilter) ([]models.Task, error)
	MyTasks(ctx context.Context, actor models.User) ([]models.Task, error)
	DashboardStats(ctx context.Context, actor models.User) (policy.DashboardStats, error)
	UpdateTask(ctx context.Context, actor models.User, id uuid.UUID, input TaskInput) (models.Task, error)
	UpdateStatus(ctx context.Context, actor models.User, id uuid.UUID, status models.TaskStatus) (models.Task, error)
	UpdateCompletion(ctx context.Context, actor models.User, id uuid.UUID, percentage int) (models.Task, error)
	DeleteTask(ctx context.Context, actor models.User, id uuid.UUID) error
}

type TaskServiceImpl struct {
	tasks repositories.TaskStore
	users repositories.UserStore
}

func NewTaskService(tasks repositories.TaskStore, users repositories.UserStore) *TaskServiceImpl {
	return &TaskServiceImpl{tasks: tasks, users: users}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, actor models.User, input TaskInput) (models.Task, error) {
	if err := policy.CanCreateTask(actor); err != nil {
		return models.Task{}, err
	}

	draft := policy.TaskDraft{DueDate: input.DueDate}
	if input.Title != nil {
		draft.Title = *input.Title
	}
	if input.Description != nil {
		draft.Description = *input.Description
	}
	if input.Status != nil {
		draft.Status = *input.Status
	}
	if input.CompletionPercentage != nil {
		draft.CompletionPercentage = *input.CompletionPercentage
	}
	assignee, err := s.resolveAssignee(ctx, input.AssignedTo)
	if err != nil {
		return models.Task{}, err
	}
	draft.Assignee = assignee

	task, err := policy.NewTask(actor, draft)
	if err != nil {
		return models.Task{}, err
	}
	if err := s.tasks.Create(ctx, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// GetTask returns ErrNotFound for tasks outside the actor's scope, so their
// existence is not revealed.
func (s *TaskServiceImpl) GetTask(ctx context.Context, actor models.User, id uuid.UUID) (models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := policy.CanReadTask(actor, task); err != nil {
		return models.Task{}, repositories.ErrNotFound
	}
	return task, nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, actor models.User, filter repositories.TaskFilter) ([]models.Task, error) {
	if filter.Status != nil {
		if err := policy.ValidateStatus(*filter.Status); err != nil {
			return nil, err
		}
	}
	return s.tasks.List(ctx, policy.TaskScopeFor(actor), filter)
}

func (s *TaskServiceImpl) MyTasks(ctx context.Context, actor models.User) ([]models.Task, error) {
	return s.tasks.List(ctx, policy.MyTasksScope(actor), repositories.TaskFilter{})
}

func (s *TaskServiceImpl) DashboardStats(ctx context.Context, actor models.User) (policy.DashboardStats, error) {
	visible, err := s.tasks.List(ctx, policy.TaskScopeFor(actor), repositories.TaskFilter{})
	if err != nil {
		return policy.DashboardStats{}, err
	}
	return policy.ComputeDashboardStats(actor, visible), nil
}

// Mutations load the task without the read scope: an actor who may not
// change an existing task is told so with a ForbiddenError, not a 404.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, actor models.User, id uuid.UUID, input TaskInput) (models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	patch := policy.TaskPatch{
		Title:                input.Title,
		Description:          input.Description,
		Status:               input.Status,
		CompletionPercentage: input.CompletionPercentage,
		AssignedToSet:        input.AssignedToSet,
		DueDateSet:           input.DueDateSet,
		DueDate:              input.DueDate,
	}
	// Authorize before resolving the assignee so a denied actor learns
	// nothing about other users.
	if err := policy.CanEditTaskFields(actor, task, patch.Changed()); err != nil {
		return models.Task{}, err
	}
	if input.AssignedToSet {
		if patch.AssignedTo, err = s.resolveAssignee(ctx, input.AssignedTo); err != nil {
			return models.Task{}, err
		}
	}

	updated, changed, err := policy.ApplyTaskEdit(actor, task, patch)
	if err != nil {
		return models.Task{}, err
	}
	return s.tasks.Update(ctx, id, taskDelta(updated, changed))
}

func (s *TaskServiceImpl) UpdateStatus(ctx context.Context, actor models.User, id uuid.UUID, status models.TaskStatus) (models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	updated, err := policy.ApplyStatusUpdate(actor, task, status)
	if err != nil {
		return models.Task{}, err
	}
	return s.tasks.Update(ctx, id, taskDelta(updated, policy.NewFieldSet(policy.FieldStatus)))
}

func (s *TaskServiceImpl) UpdateCompletion(ctx context.Context, actor models.User, id uuid.UUID, percentage int) (models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	updated, err := policy.ApplyPercentageUpdate(actor, task, percentage)
	if err != nil {
		return models.Task{}, err
	}
	changed := policy.NewFieldSet(policy.FieldCompletionPercentage, policy.FieldStatus)
	return s.tasks.Update(ctx, id, taskDelta(updated, changed))
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, actor models.User, id uuid.UUID) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CanDeleteTask(actor, task); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, id)
}

func (s *TaskServiceImpl) resolveAssignee(ctx context.Context, id *uuid.UUID) (*models.User, error) {
	if id == nil {
		return nil, nil
	}
	user, err := s.users.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, policy.Invalid(string(policy.FieldAssignedTo), "user does not exist")
		}
		return nil, err
	}
	return &user, nil
}

// taskDelta maps the changed fields of task onto column values for a partial
// update, so concurrent writers only overwrite the columns they touched.
func taskDelta(task models.Task, changed policy.FieldSet) map[string]interface{} {
	delta := make(map[string]interface{}, len(changed))
	for _, f := range changed.Fields() {
		switch f {
		case policy.FieldTitle:
			delta["title"] = task.Title
		case policy.FieldDescription:
			delta["description"] = task.Description
		case policy.FieldStatus:
			delta["status"] = task.Status
		case policy.FieldCompletionPercentage:
			delta["completion_percentage"] = task.CompletionPercentage
		case policy.FieldAssignedTo:
			if task.AssignedToID == nil {
				delta["assigned_to_id"] = nil
			} else {
				delta["assigned_to_id"] = *task.AssignedToID
			}
		case policy.FieldDueDate:
			if task.DueDate == nil {
				delta["due_date"] = nil
			} else {
				delta["due_date"] = *task.DueDate
			}
		}
	}
	return delta
}
