package models

import "time"

// AnalyticsEvent is the tagged union of everything the funnel reports to
// the event sink. Events are append-only and independent; Time is captured
// at emission and is non-decreasing within a process.
type AnalyticsEvent interface {
	EventTime() time.Time
}

type UserStarted struct {
	TS   time.Time
	User User
	Ref  string
}

type StepViewed struct {
	TS        time.Time
	UserID    int64
	StepIndex int
	StepKind  StepKind
}

type ButtonClicked struct {
	TS     time.Time
	UserID int64
	Token  string
}

type FunnelFinished struct {
	TS     time.Time
	UserID int64
}

func (e UserStarted) EventTime() time.Time    { return e.TS }
func (e StepViewed) EventTime() time.Time     { return e.TS }
func (e ButtonClicked) EventTime() time.Time  { return e.TS }
func (e FunnelFinished) EventTime() time.Time { return e.TS }
