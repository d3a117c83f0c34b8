package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ad/go-telegram-funnel/internal/models"
	"gopkg.in/yaml.v3"
)

// Catalog is the immutable ordered list of funnel steps, loaded once at
// startup. Lookups past the end return nil, which the engine treats as
// funnel end.
type Catalog struct {
	steps []*models.Step
}

// rawStep mirrors the source file shape, which grew organically: kind may
// be spelled "type", body may be "content" or a media "file" reference,
// and old catalogs carry a singular "button" label instead of button rows.
type rawStep struct {
	Kind    string        `json:"kind" yaml:"kind"`
	Type    string        `json:"type" yaml:"type"`
	Body    string        `json:"body" yaml:"body"`
	Content string        `json:"content" yaml:"content"`
	File    string        `json:"file" yaml:"file"`
	Caption string        `json:"caption" yaml:"caption"`
	Button  string        `json:"button" yaml:"button"`
	Buttons [][]rawButton `json:"buttons" yaml:"buttons"`
}

type rawButton struct {
	Text         string `json:"text" yaml:"text"`
	Label        string `json:"label" yaml:"label"`
	Data         string `json:"data" yaml:"data"`
	CallbackData string `json:"callback_data" yaml:"callback_data"`
	URL          string `json:"url" yaml:"url"`
}

// Load reads a step catalog from a JSON or YAML file and normalizes every
// step. A missing or unparsable file is an error (startup-fatal for the
// caller); malformed individual buttons are not, they are resolved later
// by the keyboard builder.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var raw []rawStep
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
	}

	c := &Catalog{steps: make([]*models.Step, 0, len(raw))}
	for i, rs := range raw {
		c.steps = append(c.steps, normalize(i, rs))
	}
	return c, nil
}

func New(steps []*models.Step) *Catalog {
	for i, s := range steps {
		s.Index = i
	}
	return &Catalog{steps: steps}
}

func normalize(index int, rs rawStep) *models.Step {
	step := &models.Step{
		Index:     index,
		Kind:      normalizeKind(index, rs),
		Caption:   rs.Caption,
		NextLabel: rs.Button,
	}

	step.Body = rs.Body
	if step.Body == "" {
		step.Body = rs.Content
	}
	if step.Body == "" {
		step.Body = rs.File
	}
	// Media steps reference a file id; it wins over stray text fields.
	if step.IsMedia() && rs.File != "" {
		step.Body = rs.File
	}

	for _, row := range rs.Buttons {
		var buttons []models.Button
		for _, rb := range row {
			buttons = append(buttons, normalizeButton(rb))
		}
		step.Rows = append(step.Rows, buttons)
	}

	return step
}

func normalizeKind(index int, rs rawStep) models.StepKind {
	kind := rs.Kind
	if kind == "" {
		kind = rs.Type
	}
	switch models.StepKind(kind) {
	case models.KindText, models.KindDocument, models.KindVideo, models.KindAudio:
		return models.StepKind(kind)
	}
	log.Printf("[CATALOG] step %d: unknown kind %q, treating as text", index, kind)
	return models.KindText
}

func normalizeButton(rb rawButton) models.Button {
	b := models.Button{
		Label: rb.Text,
		Token: rb.Data,
		URL:   rb.URL,
	}
	if b.Label == "" {
		b.Label = rb.Label
	}
	if b.Token == "" {
		b.Token = rb.CallbackData
	}
	return b
}

// Get returns the step at index, or nil when index is out of range.
func (c *Catalog) Get(index int) *models.Step {
	if index < 0 || index >= len(c.steps) {
		return nil
	}
	return c.steps[index]
}

func (c *Catalog) Len() int {
	return len(c.steps)
}
