package services

import (
	"log"

	"github.com/ad/go-telegram-funnel/internal/fsm"
	"github.com/ad/go-telegram-funnel/internal/models"
)

const (
	// DefaultNextLabel is used when a step defines no buttons and no
	// legacy label of its own.
	DefaultNextLabel = "Дальше"

	// PlaceholderLabel marks a button the catalog defined but the funnel
	// cannot act on. It is wired to the noop token so a press is
	// acknowledged without any state change.
	PlaceholderLabel = "…"
)

// BuildKeyboard turns a step's button rows into a renderable keyboard.
// It never fails: malformed buttons degrade to placeholders, and a step
// with no rows gets a single default "next" button. The engine can always
// render.
func BuildKeyboard(step *models.Step) models.Keyboard {
	var keyboard models.Keyboard
	for _, row := range step.Rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]models.Button, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, sanitizeButton(step.Index, b))
		}
		keyboard = append(keyboard, buttons)
	}

	if len(keyboard) == 0 {
		label := step.NextLabel
		if label == "" {
			label = DefaultNextLabel
		}
		keyboard = models.Keyboard{{{Label: label, Token: fsm.TokenNext}}}
	}

	return keyboard
}

func sanitizeButton(stepIndex int, b models.Button) models.Button {
	if !b.HasAction() {
		log.Printf("[KEYBOARD] step %d: button %q has no token or url, using placeholder", stepIndex, b.Label)
		return models.Button{Label: PlaceholderLabel, Token: fsm.TokenNoop}
	}
	if b.Token != "" && b.URL != "" {
		log.Printf("[KEYBOARD] step %d: button %q has both token and url, keeping token", stepIndex, b.Label)
		b.URL = ""
	}
	if b.Label == "" {
		b.Label = PlaceholderLabel
	}
	return b
}
