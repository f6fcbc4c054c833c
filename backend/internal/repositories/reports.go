package repositories

import (
	"context"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/policy"
)

type ReportFilter struct {
	TaskID     *uuid.UUID
	ReportedBy *uuid.UUID
}

type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (models.Report, error)
	Update(ctx context.Context, id uuid.UUID, delta map[string]interface{}) (models.Report, error)
	List(ctx context.Context, scope policy.ReportScope, filter ReportFilter) ([]models.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormReportStore struct {
	db *gorm.DB
}

func NewReportStore(db *gorm.DB) *GormReportStore {
	return &GormReportStore{db: db}
}

func (s *GormReportStore) withAuthor(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("ReportedBy")
}

func (s *GormReportStore) Create(ctx context.Context, report *models.Report) error {
	if err := s.db.WithContext(ctx).Omit("Task", "ReportedBy").Create(report).Error; err != nil {
		return translate(err)
	}
	stored, err := s.GetByID(ctx, report.ID)
	if err != nil {
		return err
	}
	*report = stored
	return nil
}

func (s *GormReportStore) GetByID(ctx context.Context, id uuid.UUID) (models.Report, error) {
	var report models.Report
	err := s.withAuthor(ctx).Where("id = ?", id).First(&report).Error
	return report, translate(err)
}

func (s *GormReportStore) Update(ctx context.Context, id uuid.UUID, delta map[string]interface{}) (models.Report, error) {
	if len(delta) > 0 {
		result := s.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Updates(delta)
		if result.Error != nil {
			return models.Report{}, translate(result.Error)
		}
		if result.RowsAffected == 0 {
			return models.Report{}, ErrNotFound
		}
	}
	return s.GetByID(ctx, id)
}

func (s *GormReportStore) List(ctx context.Context, scope policy.ReportScope, filter ReportFilter) ([]models.Report, error) {
	var reports []models.Report
	err := s.withAuthor(ctx).
		Scopes(ReportScope(scope), reportFilter(filter)).
		Order("created_at DESC").
		Find(&reports).Error
	return reports, translate(err)
}

func (s *GormReportStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Report{})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func ReportScope(scope policy.ReportScope) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if scope.All {
			return db
		}
		return db.Where("reported_by_id = ?", scope.ReportedBy)
	}
}

func reportFilter(filter ReportFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.TaskID != nil {
			db = db.Where("task_id = ?", *filter.TaskID)
		}
		if filter.ReportedBy != nil {
			db = db.Where("reported_by_id = ?", *filter.ReportedBy)
		}
		return db
	}
}
