package policy

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"task-tracker/backend/internal/models"
)

const maxTitleLength = 200

func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return Invalid(string(FieldTitle), "must not be empty")
	}
	if len([]rune(title)) > maxTitleLength {
		return Invalid(string(FieldTitle), "must be at most 200 characters")
	}
	return nil
}

func ValidateStatus(status models.TaskStatus) error {
	if !status.Valid() {
		return Invalid(string(FieldStatus), "invalid status")
	}
	return nil
}

func ValidatePercentage(p int) error {
	if p < 0 || p > 100 {
		return Invalid(string(FieldCompletionPercentage), "must be 0..100")
	}
	return nil
}

// ValidateAssignedTo rejects managers as assignees. A nil assignee clears the
// assignment and is always valid.
func ValidateAssignedTo(assignee *models.User) error {
	if assignee != nil && assignee.IsManager() {
		return Invalid(string(FieldAssignedTo), "must be an employee")
	}
	return nil
}

func ValidateReportContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return Invalid("content", "must not be empty")
	}
	return nil
}

// ParsePercentage converts a value decoded with json.Decoder.UseNumber into
// a whole percentage. Numbers with a zero fraction (50.0, 1e2) and numeric
// strings are accepted; fractions and anything else are rejected. The range
// is checked separately by ValidatePercentage.
func ParsePercentage(v interface{}) (int, error) {
	field := string(FieldCompletionPercentage)
	switch n := v.(type) {
	case nil:
		return 0, Invalid(field, "is required")
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, Invalid(field, "must be a valid number")
		}
		if math.Abs(f) > math.MaxInt32 {
			return 0, Invalid(field, "must be 0..100")
		}
		if f != math.Trunc(f) {
			return 0, Invalid(field, "must be an integer")
		}
		return int(f), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, Invalid(field, "must be a valid number")
		}
		return i, nil
	default:
		return 0, Invalid(field, "must be a valid number")
	}
}
