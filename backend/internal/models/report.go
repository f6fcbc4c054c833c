package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Report is a free-text note attached to a task.
type Report struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID       uuid.UUID `json:"task" gorm:"type:uuid;not null;index"`
	Task         *Task     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	ReportedByID uuid.UUID `json:"reported_by" gorm:"type:uuid;not null;index"`
	ReportedBy   *User     `json:"-" gorm:"foreignKey:ReportedByID;constraint:OnDelete:CASCADE"`
	Content      string    `json:"content" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		r.ID = id
	}
	return nil
}
