package models

// Texts holds the operator-editable messages the funnel sends outside of
// catalog content. Defaults are seeded into the settings table at schema
// init.
type Texts struct {
	CompletionMessage    string
	RetryMessage         string
	UnknownActionMessage string
	InvalidGotoMessage   string
}
