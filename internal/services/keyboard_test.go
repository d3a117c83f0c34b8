package services

import (
	"testing"

	"github.com/ad/go-telegram-funnel/internal/fsm"
	"github.com/ad/go-telegram-funnel/internal/models"
	"pgregory.net/rapid"
)

func TestBuildKeyboardDefaultRow(t *testing.T) {
	kb := BuildKeyboard(&models.Step{Kind: models.KindText, Body: "hi"})

	if len(kb) != 1 || len(kb[0]) != 1 {
		t.Fatalf("keyboard shape: %+v", kb)
	}
	if kb[0][0].Label != DefaultNextLabel || kb[0][0].Token != fsm.TokenNext {
		t.Errorf("default row = %+v", kb[0][0])
	}
}

func TestBuildKeyboardCustomNextLabel(t *testing.T) {
	kb := BuildKeyboard(&models.Step{Kind: models.KindText, NextLabel: "Поехали 🚀"})

	if kb[0][0].Label != "Поехали 🚀" || kb[0][0].Token != fsm.TokenNext {
		t.Errorf("legacy label row = %+v", kb[0][0])
	}
}

func TestBuildKeyboardEmptyRowsSkipped(t *testing.T) {
	kb := BuildKeyboard(&models.Step{
		Kind: models.KindText,
		Rows: [][]models.Button{{}, {}},
	})

	// Nothing usable survives, so the default row is synthesized.
	if len(kb) != 1 || kb[0][0].Token != fsm.TokenNext {
		t.Fatalf("keyboard = %+v", kb)
	}
}

func TestBuildKeyboardPlaceholder(t *testing.T) {
	kb := BuildKeyboard(&models.Step{
		Kind: models.KindText,
		Rows: [][]models.Button{{{Label: "Broken"}}},
	})

	b := kb[0][0]
	if b.Label != PlaceholderLabel || b.Token != fsm.TokenNoop || b.URL != "" {
		t.Errorf("actionless button = %+v, want disabled placeholder", b)
	}
}

func TestBuildKeyboardTokenWinsOverURL(t *testing.T) {
	kb := BuildKeyboard(&models.Step{
		Kind: models.KindText,
		Rows: [][]models.Button{{{Label: "Go", Token: "goto:2", URL: "https://example.com"}}},
	})

	b := kb[0][0]
	if b.Token != "goto:2" || b.URL != "" {
		t.Errorf("button = %+v, want token kept and url dropped", b)
	}
}

func TestBuildKeyboardEmptyLabel(t *testing.T) {
	kb := BuildKeyboard(&models.Step{
		Kind: models.KindText,
		Rows: [][]models.Button{{{Token: "next"}}},
	})

	b := kb[0][0]
	if b.Label != PlaceholderLabel || b.Token != "next" {
		t.Errorf("button = %+v, want placeholder label with original token", b)
	}
}

func TestBuildKeyboardPreservesShape(t *testing.T) {
	kb := BuildKeyboard(&models.Step{
		Kind: models.KindVideo,
		Rows: [][]models.Button{
			{{Label: "A", Token: "next"}, {Label: "B", URL: "https://example.com"}},
			{{Label: "C", Token: "goto:0"}},
		},
	})

	if len(kb) != 2 || len(kb[0]) != 2 || len(kb[1]) != 1 {
		t.Fatalf("keyboard shape: %+v", kb)
	}
	if kb[0][1].URL != "https://example.com" || kb[0][1].Token != "" {
		t.Errorf("url-only button = %+v", kb[0][1])
	}
}

// Every built button must be renderable: a non-empty label and exactly one
// of token or url.
func TestProperty_BuiltButtonsAlwaysRenderable(t *testing.T) {
	buttonGen := rapid.Custom(func(rt *rapid.T) models.Button {
		return models.Button{
			Label: rapid.StringN(0, 16, -1).Draw(rt, "label"),
			Token: rapid.SampledFrom([]string{"", "next", "noop", "goto:1", "step2", "junk"}).Draw(rt, "token"),
			URL:   rapid.SampledFrom([]string{"", "https://example.com"}).Draw(rt, "url"),
		}
	})

	rapid.Check(t, func(rt *rapid.T) {
		rows := rapid.SliceOfN(rapid.SliceOfN(buttonGen, 0, 3), 0, 3).Draw(rt, "rows")
		kb := BuildKeyboard(&models.Step{Kind: models.KindText, Rows: rows})

		if len(kb) == 0 {
			rt.Fatal("keyboard must never be empty")
		}
		for _, row := range kb {
			if len(row) == 0 {
				rt.Fatal("built rows must never be empty")
			}
			for _, b := range row {
				if b.Label == "" {
					rt.Fatalf("empty label on %+v", b)
				}
				if b.Token == "" && b.URL == "" {
					rt.Fatalf("button %+v has no action", b)
				}
				if b.Token != "" && b.URL != "" {
					rt.Fatalf("button %+v has two actions", b)
				}
			}
		}
	})
}
