package script

import (
	"strings"
	"testing"
)

func TestBuildPromptPrecedence(t *testing.T) {
	req := Request{
		Topic:           "space facts",
		Language:        "en",
		Tone:            "energetic",
		DurationSeconds: 45,
		CustomPrompt:    "write about black holes only",
		Template:        "script about {topic} in {language}",
	}

	if got := BuildPrompt(req); got != "write about black holes only" {
		t.Fatalf("custom prompt not preferred, got %q", got)
	}

	req.CustomPrompt = ""
	if got := BuildPrompt(req); got != "script about space facts in en" {
		t.Fatalf("template not interpolated, got %q", got)
	}

	req.Template = ""
	got := BuildPrompt(req)
	if !strings.Contains(got, "45-second") || !strings.Contains(got, "space facts") {
		t.Fatalf("default prompt missing request fields: %q", got)
	}
}

func TestInterpolateAllPlaceholders(t *testing.T) {
	req := Request{
		Topic:           "history",
		Language:        "pl",
		Tone:            "calm",
		DurationSeconds: 60,
		Template:        "{topic}/{language}/{tone}/{duration}",
	}
	if got := BuildPrompt(req); got != "history/pl/calm/60" {
		t.Fatalf("got %q", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	s := &Script{}
	ApplyDefaults(s)

	if s.Title != DefaultTitle {
		t.Fatalf("title = %q, want %q", s.Title, DefaultTitle)
	}
	if s.Scenes == nil || len(s.Scenes) != 0 {
		t.Fatalf("scenes = %#v, want empty slice", s.Scenes)
	}
	if s.CallToAction != DefaultCallToAction {
		t.Fatalf("call to action = %q", s.CallToAction)
	}
	if s.Tags == nil || len(s.Tags) != 0 {
		t.Fatalf("tags = %#v, want empty slice", s.Tags)
	}
}

func TestApplyDefaultsKeepsModelOutput(t *testing.T) {
	s := &Script{
		Title:        "Real Title",
		Scenes:       []Scene{{Text: "hi", DurationHint: "7"}},
		CallToAction: "Like it!",
		Tags:         []string{"a"},
	}
	ApplyDefaults(s)

	if s.Title != "Real Title" || s.CallToAction != "Like it!" {
		t.Fatalf("defaults overwrote model output: %+v", s)
	}
	if s.Scenes[0].DurationHint != "7" {
		t.Fatalf("duration hint overwritten: %q", s.Scenes[0].DurationHint)
	}
}

func TestApplyDefaultsFillsSceneDuration(t *testing.T) {
	s := &Script{Scenes: []Scene{{Text: "x"}}}
	ApplyDefaults(s)
	if s.Scenes[0].DurationHint != "5" {
		t.Fatalf("duration hint = %q, want 5", s.Scenes[0].DurationHint)
	}
}
