package models

// Step is the normalized catalog entry. The loader folds all legacy source
// shapes (singular button field, data vs callback_data, content vs body)
// into this one form, so everything downstream works with a single shape.
type Step struct {
	Index     int
	Kind      StepKind
	Body      string
	Caption   string
	Rows      [][]Button
	NextLabel string
}

// Button carries either a navigation token or an external URL. A button
// with neither is replaced by a disabled placeholder at keyboard build
// time, never rejected.
type Button struct {
	Label string
	Token string
	URL   string
}

func (b Button) HasAction() bool {
	return b.Token != "" || b.URL != ""
}

func (s *Step) IsMedia() bool {
	return s.Kind == KindDocument || s.Kind == KindVideo || s.Kind == KindAudio
}

// Keyboard is the channel-agnostic layout the Keyboard Builder produces.
// The channel adapter converts it to the transport's native markup.
type Keyboard [][]Button
