package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	StatusCreated   TaskStatus = "created"
	StatusAssigned  TaskStatus = "assigned"
	StatusOngoing   TaskStatus = "ongoing"
	StatusCompleted TaskStatus = "completed"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{StatusCreated, StatusAssigned, StatusOngoing, StatusCompleted}

func (s TaskStatus) Valid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Task struct {
	ID                   uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title                string     `json:"title" gorm:"size:200;not null"`
	Description          string     `json:"description"`
	Status               TaskStatus `json:"status" gorm:"type:varchar(20);not null;default:'created';index"`
	CompletionPercentage int        `json:"completion_percentage" gorm:"not null;default:0"`
	CreatedByID          uuid.UUID  `json:"created_by" gorm:"type:uuid;not null;index"`
	CreatedBy            *User      `json:"creator,omitempty" gorm:"foreignKey:CreatedByID;constraint:OnDelete:CASCADE"`
	AssignedToID         *uuid.UUID `json:"assigned_to" gorm:"type:uuid;index"`
	AssignedTo           *User      `json:"assignee,omitempty" gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL"`
	CreatedAt            time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt            time.Time  `json:"updated_at"`
	DueDate              *time.Time `json:"due_date"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	if t.Status == "" {
		t.Status = StatusCreated
	}
	return nil
}

func (t Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}

func (t Task) IsCreatedBy(userID uuid.UUID) bool {
	return t.CreatedByID == userID
}
