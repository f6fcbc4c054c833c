// Package policy decides who may read or change tasks and reports, and how a
// task's status follows its completion percentage.
//
// Every function here is pure: it takes the acting user, the current entity
// and the requested change, and returns either the new entity state or a
// *ValidationError / *ForbiddenError. Nothing is persisted; callers apply the
// returned state to a store only when the error is nil.
package policy
