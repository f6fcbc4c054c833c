package policy

import "task-tracker/backend/internal/models"

func CanCreateReport(actor models.User, task models.Task) error {
	if actor.IsManager() || task.IsAssignedTo(actor.ID) {
		return nil
	}
	return Forbidden("must be assigned to the task or a manager")
}

func CanReadReport(actor models.User, report models.Report) error {
	if !ReportScopeFor(actor).Matches(report) {
		return Forbidden("you can only view your own reports")
	}
	return nil
}

// CanModifyReport covers edits and deletes. Managers may change any report;
// anyone else must still satisfy the creation rule and be the author.
func CanModifyReport(actor models.User, task models.Task, report models.Report) error {
	if err := CanCreateReport(actor, task); err != nil {
		return err
	}
	if !actor.IsManager() && report.ReportedByID != actor.ID {
		return Forbidden("you can only change your own reports")
	}
	return nil
}

// NewReport authorizes a report on task and returns it with the actor as author.
func NewReport(actor models.User, task models.Task, content string) (models.Report, error) {
	if err := ValidateReportContent(content); err != nil {
		return models.Report{}, err
	}
	if err := CanCreateReport(actor, task); err != nil {
		return models.Report{}, err
	}
	return models.Report{
		TaskID:       task.ID,
		ReportedByID: actor.ID,
		Content:      content,
	}, nil
}
