package repositories

import (
	"context"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/policy"
)

// TaskFilter narrows a listing. Nil fields are ignored.
type TaskFilter struct {
	Status     *models.TaskStatus
	AssignedTo *uuid.UUID
	CreatedBy  *uuid.UUID
}

type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (models.Task, error)
	// Update writes only the columns in delta and returns the stored row.
	Update(ctx context.Context, id uuid.UUID, delta map[string]interface{}) (models.Task, error)
	List(ctx context.Context, scope policy.TaskScope, filter TaskFilter) ([]models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormTaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *GormTaskStore {
	return &GormTaskStore{db: db}
}

func (s *GormTaskStore) withUsers(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("CreatedBy").Preload("AssignedTo")
}

func (s *GormTaskStore) Create(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Omit("CreatedBy", "AssignedTo").Create(task).Error; err != nil {
		return translate(err)
	}
	stored, err := s.GetByID(ctx, task.ID)
	if err != nil {
		return err
	}
	*task = stored
	return nil
}

func (s *GormTaskStore) GetByID(ctx context.Context, id uuid.UUID) (models.Task, error) {
	var task models.Task
	err := s.withUsers(ctx).Where("id = ?", id).First(&task).Error
	return task, translate(err)
}

func (s *GormTaskStore) Update(ctx context.Context, id uuid.UUID, delta map[string]interface{}) (models.Task, error) {
	if len(delta) > 0 {
		result := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(delta)
		if result.Error != nil {
			return models.Task{}, translate(result.Error)
		}
		if result.RowsAffected == 0 {
			return models.Task{}, ErrNotFound
		}
	}
	return s.GetByID(ctx, id)
}

func (s *GormTaskStore) List(ctx context.Context, scope policy.TaskScope, filter TaskFilter) ([]models.Task, error) {
	var tasks []models.Task
	err := s.withUsers(ctx).
		Scopes(TaskScope(scope), taskFilter(filter)).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, translate(err)
}

func (s *GormTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TaskScope turns a visibility predicate into a query scope.
func TaskScope(scope policy.TaskScope) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch {
		case scope.All:
			return db
		case scope.AssignedOnly:
			return db.Where("assigned_to_id = ?", scope.UserID)
		default:
			return db.Where("(assigned_to_id = ? OR created_by_id = ?)", scope.UserID, scope.UserID)
		}
	}
}

func taskFilter(filter TaskFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		if filter.AssignedTo != nil {
			db = db.Where("assigned_to_id = ?", *filter.AssignedTo)
		}
		if filter.CreatedBy != nil {
			db = db.Where("created_by_id = ?", *filter.CreatedBy)
		}
		return db
	}
}
