package parser

import (
	"strings"
	"testing"
)

func parseText(t *testing.T, input, filename string) (title string, paras []string, flat string, headings bool) {
	t.Helper()
	p, err := ForFile(filename)
	if err != nil {
		t.Fatalf("ForFile(%q): %v", filename, err)
	}
	if _, ok := p.(*TextParser); !ok {
		t.Fatalf("ForFile(%q) = %T, want *TextParser", filename, p)
	}
	tree, err := p.Parse(strings.NewReader(input), filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range tree.Children {
		if n.Title != "" {
			t.Errorf("text parser produced a heading %q", n.Title)
		}
		paras = append(paras, n.Text)
	}
	return tree.Title, paras, tree.Text(), tree.HasHeadings()
}

func TestTextParser_TitleFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"notes.txt", "notes"},
		{"uploads/2024/biology.notes.TXT", "biology.notes"},
		{"/tmp/Chapter One.txt", "Chapter One"},
	}
	for _, tt := range tests {
		title, _, _, _ := parseText(t, "body", tt.filename)
		if title != tt.want {
			t.Errorf("%s: title = %q, want %q", tt.filename, title, tt.want)
		}
	}
}

func TestTextParser_ParagraphLinesJoined(t *testing.T) {
	input := "Cells divide.\nThey grow first.\n\nOsmosis moves water."
	_, paras, flat, headings := parseText(t, input, "bio.txt")

	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %q", len(paras), paras)
	}
	if paras[0] != "Cells divide.\nThey grow first." {
		t.Errorf("paragraph lines should join with newline, got %q", paras[0])
	}
	if headings {
		t.Error("plain text should report no headings")
	}
	if flat != input {
		t.Errorf("flattened text = %q, want %q", flat, input)
	}
}

func TestTextParser_CRLFAndBlankRuns(t *testing.T) {
	input := "Line one.\r\nLine two.\r\n\r\n   \r\n\r\nLast."
	_, paras, _, _ := parseText(t, input, "win.txt")

	want := []string{"Line one.\nLine two.", "Last."}
	if len(paras) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d: %q", len(want), len(paras), paras)
	}
	for i := range want {
		if paras[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, paras[i], want[i])
		}
	}
}

func TestTextParser_EmptyInputFlattensToNothing(t *testing.T) {
	title, paras, flat, _ := parseText(t, "\n\n  \n", "empty.txt")
	if title != "empty" {
		t.Errorf("title = %q", title)
	}
	if len(paras) != 0 || flat != "" {
		t.Errorf("expected no content, got %q / %q", paras, flat)
	}
}
