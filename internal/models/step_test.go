package models

import "testing"

func TestButtonHasAction(t *testing.T) {
	cases := []struct {
		button Button
		want   bool
	}{
		{Button{Label: "Go", Token: "next"}, true},
		{Button{Label: "Site", URL: "https://example.com"}, true},
		{Button{Label: "Broken"}, false},
		{Button{}, false},
	}

	for _, tc := range cases {
		if got := tc.button.HasAction(); got != tc.want {
			t.Errorf("HasAction(%+v) = %v, want %v", tc.button, got, tc.want)
		}
	}
}

func TestStepIsMedia(t *testing.T) {
	for kind, want := range map[StepKind]bool{
		KindText:     false,
		KindDocument: true,
		KindVideo:    true,
		KindAudio:    true,
	} {
		s := &Step{Kind: kind}
		if s.IsMedia() != want {
			t.Errorf("IsMedia(%s) = %v, want %v", kind, s.IsMedia(), want)
		}
	}
}
