package chunker

import (
	"strings"
	"testing"

	"github.com/dgallion1/docsheet/internal/document"
)

func TestSections_TopLevelHeadings(t *testing.T) {
	tree := &document.Tree{
		Title: "Physics",
		Children: []*document.Node{
			{Text: "Preface paragraph."},
			{Title: "Motion", Text: "Objects move.", Children: []*document.Node{
				{Title: "Velocity", Text: "Speed with direction."},
			}},
			{Text: "Trailing note."},
			{Title: "Energy", Text: "Ability to do work."},
			{Title: "Empty"},
		},
	}

	got := Sections(tree)
	if len(got) != 4 {
		t.Fatalf("expected 4 sections, got %d: %+v", len(got), got)
	}
	if got[0].Topic != "Physics" || got[0].Text != "Preface paragraph." {
		t.Errorf("unexpected preface section: %+v", got[0])
	}
	if got[1].Topic != "Motion" {
		t.Errorf("expected Motion, got %q", got[1].Topic)
	}
	for _, want := range []string{"Objects move.", "Velocity", "Speed with direction.", "Trailing note."} {
		if !strings.Contains(got[1].Text, want) {
			t.Errorf("Motion section missing %q: %q", want, got[1].Text)
		}
	}
	if got[2].Topic != "Energy" {
		t.Errorf("expected Energy, got %q", got[2].Topic)
	}
	if got[3].Topic != "Empty" || got[3].Text != "Empty" {
		t.Errorf("heading-only node keeps its heading as text, got %+v", got[3])
	}
}

func TestSections_EmptyTree(t *testing.T) {
	if got := Sections(&document.Tree{Title: "x"}); len(got) != 0 {
		t.Errorf("expected no sections, got %+v", got)
	}
}

func TestWindow_ShortTextUnchanged(t *testing.T) {
	if got := Window("  short text  ", 100); got != "short text" {
		t.Errorf("got %q", got)
	}
}

func TestWindow_CutsAtSentence(t *testing.T) {
	text := strings.Repeat("word ", 15) + "end. " + strings.Repeat("more ", 20)
	got := Window(text, 90)
	if !strings.HasSuffix(got, "end.") {
		t.Errorf("expected cut at sentence end, got %q", got)
	}
	if len(got) > 90 {
		t.Errorf("window too long: %d", len(got))
	}
}

func TestWindow_CutsAtWord(t *testing.T) {
	text := strings.Repeat("abcd ", 50)
	got := Window(text, 42)
	if strings.HasSuffix(got, "ab") || len(got) > 42 {
		t.Errorf("expected word boundary cut, got %q", got)
	}
}

func TestWindow_MultibyteSafe(t *testing.T) {
	text := strings.Repeat("é", 50)
	got := Window(text, 10)
	if got != strings.Repeat("é", 10) {
		t.Errorf("got %q", got)
	}
}

func TestPrefix(t *testing.T) {
	if got := Prefix("abcdef", 3); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := Prefix("abc", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
}
