package policy

import "sort"

// Field names a mutable task attribute. Values match the JSON keys.
type Field string

const (
	FieldTitle                Field = "title"
	FieldDescription          Field = "description"
	FieldStatus               Field = "status"
	FieldCompletionPercentage Field = "completion_percentage"
	FieldAssignedTo           Field = "assigned_to"
	FieldDueDate              Field = "due_date"
)

type FieldSet map[Field]struct{}

func NewFieldSet(fields ...Field) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func (s FieldSet) Add(f Field) {
	s[f] = struct{}{}
}

func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// SubsetOf reports whether every field in s is one of allowed.
// The empty set is a subset of anything.
func (s FieldSet) SubsetOf(allowed ...Field) bool {
	for f := range s {
		found := false
		for _, a := range allowed {
			if f == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s FieldSet) Fields() []Field {
	out := make([]Field, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
