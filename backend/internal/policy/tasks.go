package policy

import (
	"time"

	"task-tracker/backend/internal/models"
)

func CanCreateTask(actor models.User) error {
	if !actor.IsManager() {
		return Forbidden("only managers create tasks")
	}
	return nil
}

func CanReadTask(actor models.User, task models.Task) error {
	if !TaskScopeFor(actor).Matches(task) {
		return Forbidden("you can only view tasks you created or are assigned to")
	}
	return nil
}

// CanEditTaskFields is the edit decision table. Managers may change any
// field of any task. The assigned employee may change either the status alone
// or the completion percentage alone. Everyone else is denied.
func CanEditTaskFields(actor models.User, task models.Task, changed FieldSet) error {
	if actor.IsManager() {
		return nil
	}
	if !task.IsAssignedTo(actor.ID) {
		return Forbidden("you can only update your assigned tasks")
	}
	if changed.SubsetOf(FieldStatus) || changed.SubsetOf(FieldCompletionPercentage) {
		return nil
	}
	return Forbidden("employees may only update status or completion_percentage")
}

// CanDeleteTask follows the full-edit rule.
func CanDeleteTask(actor models.User, task models.Task) error {
	if !actor.IsManager() {
		return Forbidden("only managers delete tasks")
	}
	return nil
}

// TaskDraft is the payload for a new task. Assignee is the resolved user,
// not just an id, so its role can be checked.
type TaskDraft struct {
	Title                string
	Description          string
	Status               models.TaskStatus
	CompletionPercentage int
	Assignee             *models.User
	DueDate              *time.Time
}

// NewTask authorizes and validates a task creation and returns the task to
// store. created_by is always the actor.
func NewTask(actor models.User, draft TaskDraft) (models.Task, error) {
	if err := CanCreateTask(actor); err != nil {
		return models.Task{}, err
	}
	if err := ValidateTitle(draft.Title); err != nil {
		return models.Task{}, err
	}
	status := draft.Status
	if status == "" {
		status = models.StatusCreated
	}
	if err := ValidateStatus(status); err != nil {
		return models.Task{}, err
	}
	if err := ValidatePercentage(draft.CompletionPercentage); err != nil {
		return models.Task{}, err
	}
	if err := ValidateAssignedTo(draft.Assignee); err != nil {
		return models.Task{}, err
	}

	task := models.Task{
		Title:                draft.Title,
		Description:          draft.Description,
		Status:               status,
		CompletionPercentage: draft.CompletionPercentage,
		CreatedByID:          actor.ID,
		DueDate:              draft.DueDate,
	}
	if draft.Assignee != nil {
		id := draft.Assignee.ID
		task.AssignedToID = &id
	}
	return task, nil
}

// TaskPatch carries the fields present in an edit request. Nil pointers are
// absent fields. AssignedTo and DueDate can also be cleared, so they carry an
// explicit Set flag.
type TaskPatch struct {
	Title                *string
	Description          *string
	Status               *models.TaskStatus
	CompletionPercentage *int

	AssignedToSet bool
	AssignedTo    *models.User

	DueDateSet bool
	DueDate    *time.Time
}

func (p TaskPatch) Changed() FieldSet {
	set := NewFieldSet()
	if p.Title != nil {
		set.Add(FieldTitle)
	}
	if p.Description != nil {
		set.Add(FieldDescription)
	}
	if p.Status != nil {
		set.Add(FieldStatus)
	}
	if p.CompletionPercentage != nil {
		set.Add(FieldCompletionPercentage)
	}
	if p.AssignedToSet {
		set.Add(FieldAssignedTo)
	}
	if p.DueDateSet {
		set.Add(FieldDueDate)
	}
	return set
}

// ApplyTaskEdit runs a general edit. Authorization is checked before the
// values are validated. A patch that only carries a status or only carries a
// percentage takes the matching dedicated path, so the percentage derivation
// applies to it; mixed patches set fields verbatim.
func ApplyTaskEdit(actor models.User, task models.Task, patch TaskPatch) (models.Task, FieldSet, error) {
	changed := patch.Changed()
	if err := CanEditTaskFields(actor, task, changed); err != nil {
		return task, nil, err
	}

	if len(changed) == 1 {
		switch {
		case changed.Has(FieldStatus):
			updated, err := ApplyStatusUpdate(actor, task, *patch.Status)
			if err != nil {
				return task, nil, err
			}
			return updated, changed, nil
		case changed.Has(FieldCompletionPercentage):
			updated, err := ApplyPercentageUpdate(actor, task, *patch.CompletionPercentage)
			if err != nil {
				return task, nil, err
			}
			if updated.Status != task.Status {
				changed.Add(FieldStatus)
			}
			return updated, changed, nil
		}
	}

	if patch.Title != nil {
		if err := ValidateTitle(*patch.Title); err != nil {
			return task, nil, err
		}
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		if err := ValidateStatus(*patch.Status); err != nil {
			return task, nil, err
		}
		task.Status = *patch.Status
	}
	if patch.CompletionPercentage != nil {
		if err := ValidatePercentage(*patch.CompletionPercentage); err != nil {
			return task, nil, err
		}
		task.CompletionPercentage = *patch.CompletionPercentage
	}
	if patch.AssignedToSet {
		if err := ValidateAssignedTo(patch.AssignedTo); err != nil {
			return task, nil, err
		}
		if patch.AssignedTo == nil {
			task.AssignedToID = nil
		} else {
			id := patch.AssignedTo.ID
			task.AssignedToID = &id
		}
	}
	if patch.DueDateSet {
		task.DueDate = patch.DueDate
	}
	return task, changed, nil
}

// ApplyStatusUpdate sets the status directly. The completion percentage is
// not touched.
func ApplyStatusUpdate(actor models.User, task models.Task, status models.TaskStatus) (models.Task, error) {
	if err := ValidateStatus(status); err != nil {
		return task, err
	}
	if err := CanEditTaskFields(actor, task, NewFieldSet(FieldStatus)); err != nil {
		return task, err
	}
	task.Status = status
	return task, nil
}

// ApplyPercentageUpdate sets the completion percentage and then advances the
// status with DeriveStatusFromPercentage.
func ApplyPercentageUpdate(actor models.User, task models.Task, p int) (models.Task, error) {
	if err := ValidatePercentage(p); err != nil {
		return task, err
	}
	if err := CanEditTaskFields(actor, task, NewFieldSet(FieldCompletionPercentage)); err != nil {
		return task, err
	}
	task.CompletionPercentage = p
	task.Status = DeriveStatusFromPercentage(task.Status, p)
	return task, nil
}
