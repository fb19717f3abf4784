// Package structure infers a chapter/section outline from plain text.
package structure

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dgallion1/docsheet/internal/document"
)

// Rule is one heading pattern. Number and Title are submatch indexes;
// Number 0 means the heading is unnumbered.
type Rule struct {
	Name   string
	Re     *regexp.Regexp
	Number int
	Title  int
	// Check is an extra predicate on the title, if set.
	Check func(title string) bool
	// Claims keeps a matching line out of later rule sets even when its
	// title is rejected, so "CHAPTER 3" is never a section.
	Claims bool
}

// ChapterRules are tried first, in order.
var ChapterRules = []Rule{
	{Name: "chapter", Claims: true, Re: regexp.MustCompile(`(?i)^chapter\s+(\d+|[ivxlc]+)\s*[:.\-–]?\s*(.*)$`), Number: 1, Title: 2},
	{Name: "unit", Claims: true, Re: regexp.MustCompile(`(?i)^unit\s+(\d+)\s*[:.\-–]?\s*(.*)$`), Number: 1, Title: 2},
	{Name: "lesson", Claims: true, Re: regexp.MustCompile(`(?i)^lesson\s+(\d+)\s*[:.\-–]?\s*(.*)$`), Number: 1, Title: 2},
	{Name: "numbered-dot", Re: regexp.MustCompile(`^(\d+)\.\s+(\D.*)$`), Number: 1, Title: 2},
	{Name: "numbered", Re: regexp.MustCompile(`^(\d+)\s+(\p{Lu}.*)$`), Number: 1, Title: 2},
}

// SectionRules are tried on lines no chapter rule matched.
var SectionRules = []Rule{
	{Name: "hierarchical", Re: regexp.MustCompile(`^(\d+(?:\.\d+)+)\.?\s+(.+)$`), Number: 1, Title: 2},
	{Name: "all-caps", Re: regexp.MustCompile(`^([\p{Lu}0-9][\p{Lu}0-9 ,&'’\-:()]+)$`), Title: 1, Check: enoughLetters},
	{Name: "title-case", Re: regexp.MustCompile(`^(\p{Lu}[\p{L}'’\-]*(?:\s+\p{Lu}[\p{L}'’\-]*){1,7})$`), Title: 1},
}

var numericOnly = regexp.MustCompile(`^[\d.\s]+$`)

func validTitle(t string) bool {
	return len(t) > 2 && !numericOnly.MatchString(t)
}

func enoughLetters(t string) bool {
	n := 0
	for _, r := range t {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n >= 4
}

// match returns the first rule hit for line. claimed reports whether a
// Claims rule matched the line, hit or not.
func match(rules []Rule, line string, lineNo int) (ref document.HeadingRef, ok, claimed bool) {
	for _, r := range rules {
		m := r.Re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		claimed = claimed || r.Claims
		title := strings.TrimSpace(m[r.Title])
		if !validTitle(title) || (r.Check != nil && !r.Check(title)) {
			continue
		}
		ref = document.HeadingRef{Title: title, Line: lineNo}
		if r.Number > 0 {
			ref.Number = m[r.Number]
		}
		return ref, true, claimed
	}
	return document.HeadingRef{}, false, claimed
}

// Infer scans text line by line. A line yields at most one heading, and a
// chapter match or a chapter keyword suppresses the section check. Line numbers are 1-based
// offsets into strings.Split(text, "\n").
func Infer(text string) document.Outline {
	out := document.Outline{Chapters: []document.HeadingRef{}, Sections: []document.HeadingRef{}}
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if len(line) <= 2 {
			continue
		}
		ref, ok, claimed := match(ChapterRules, line, i+1)
		if ok {
			out.Chapters = append(out.Chapters, ref)
			continue
		}
		if claimed {
			continue
		}
		if ref, ok, _ := match(SectionRules, line, i+1); ok {
			out.Sections = append(out.Sections, ref)
		}
	}
	sort.SliceStable(out.Chapters, func(a, b int) bool { return out.Chapters[a].Line < out.Chapters[b].Line })
	sort.SliceStable(out.Sections, func(a, b int) bool { return out.Sections[a].Line < out.Sections[b].Line })
	return out
}
