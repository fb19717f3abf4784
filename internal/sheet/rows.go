package sheet

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/llm"
)

// ParseRows normalizes loosely shaped input into content rows. Elements
// may be rows, maps with lower or title case keys, or strings holding
// (possibly fenced) JSON objects or arrays. Anything else becomes a row
// with only Content set.
func ParseRows(data []any) []document.ContentRow {
	rows := make([]document.ContentRow, 0, len(data))
	for _, item := range data {
		rows = append(rows, parseItem(item)...)
	}
	return rows
}

func parseItem(item any) []document.ContentRow {
	switch v := item.(type) {
	case document.ContentRow:
		return []document.ContentRow{trimRow(v)}
	case map[string]any:
		return []document.ContentRow{rowFromMap(v)}
	case string:
		return parseString(v)
	case nil:
		return []document.ContentRow{{}}
	default:
		return []document.ContentRow{{Content: strings.TrimSpace(fmt.Sprint(v))}}
	}
}

func parseString(s string) []document.ContentRow {
	body := llm.StripCodeFence(s)
	var parsed any
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		switch v := parsed.(type) {
		case []any:
			var rows []document.ContentRow
			for _, el := range v {
				if m, ok := el.(map[string]any); ok {
					rows = append(rows, rowFromMap(m))
				}
			}
			return rows
		case map[string]any:
			return []document.ContentRow{rowFromMap(v)}
		}
	}
	return []document.ContentRow{{Content: strings.TrimSpace(s)}}
}

func rowFromMap(m map[string]any) document.ContentRow {
	return document.ContentRow{
		Topic:     field(m, "topic", "Topic"),
		Subtopic:  field(m, "subtopic", "Subtopic"),
		Content:   field(m, "content", "Content"),
		VideoLink: field(m, "video_link", "Video Link", "Video_Link", "videoLink"),
	}
}

func field(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}

func trimRow(r document.ContentRow) document.ContentRow {
	return document.ContentRow{
		Topic:     strings.TrimSpace(r.Topic),
		Subtopic:  strings.TrimSpace(r.Subtopic),
		Content:   strings.TrimSpace(r.Content),
		VideoLink: strings.TrimSpace(r.VideoLink),
	}
}

// ValidationStats counts populated columns.
type ValidationStats struct {
	TotalItems         int `json:"total_items"`
	ItemsWithTopic     int `json:"items_with_topic"`
	ItemsWithSubtopic  int `json:"items_with_subtopic"`
	ItemsWithContent   int `json:"items_with_content"`
	ItemsWithVideoLink int `json:"items_with_video_link"`
}

type Report struct {
	Valid    bool            `json:"valid"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Stats    ValidationStats `json:"stats"`
}

// Validate checks rows before export. Missing content is an error;
// missing topic or subtopic only warns.
func Validate(rows []document.ContentRow) Report {
	r := Report{Errors: []string{}, Warnings: []string{}, Stats: ValidationStats{TotalItems: len(rows)}}
	for i, row := range rows {
		n := i + 1
		if row.Topic == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("row %d: missing topic", n))
		} else {
			r.Stats.ItemsWithTopic++
		}
		if row.Subtopic == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("row %d: missing subtopic", n))
		} else {
			r.Stats.ItemsWithSubtopic++
		}
		if row.Content == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("row %d: missing content", n))
		} else {
			r.Stats.ItemsWithContent++
		}
		if row.VideoLink != "" {
			r.Stats.ItemsWithVideoLink++
		}
	}
	if len(rows) == 0 {
		r.Warnings = append(r.Warnings, "no rows")
	}
	r.Valid = len(r.Errors) == 0
	return r
}
