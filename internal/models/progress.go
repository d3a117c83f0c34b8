package models

import "time"

// UserProgress maps a user to the last step index rendered to them.
// Created on first render, overwritten on every successful render, never
// deleted: funnel completion is an index beyond the catalog, not a removed
// row.
type UserProgress struct {
	UserID    int64
	StepIndex int
	UpdatedAt time.Time
}
