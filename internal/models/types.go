package models

type StepKind string

const (
	KindText     StepKind = "text"
	KindDocument StepKind = "document"
	KindVideo    StepKind = "video"
	KindAudio    StepKind = "audio"
)

type EventType string

const (
	EventStart  EventType = "start"
	EventClick  EventType = "click"
	EventFinish EventType = "finish"
)
