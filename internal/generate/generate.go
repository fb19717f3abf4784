// Package generate turns raw text into topic/subtopic/content rows with an
// LLM, degrading to templated content when backends fail.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/docsheet/internal/chunker"
	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/llm"
)

const (
	analyzeChars  = 2000
	windowChars   = 1000
	fallbackChars = 500

	DefaultTopic    = "General Content"
	DefaultSubtopic = "Main Content"
)

// Result is the outcome of one generation. Success is false only when
// nothing could be produced; Error describes any degradation.
type Result struct {
	Success bool                  `json:"success"`
	Items   []document.ContentRow `json:"content_items"`
	Error   string                `json:"error,omitempty"`
}

type Options struct {
	AnalyzeTimeout  time.Duration
	QuickTimeout    time.Duration
	SubtopicTimeout time.Duration
	SubtopicDelay   time.Duration
	MaxSubtopics    int
}

func DefaultOptions() Options {
	return Options{
		AnalyzeTimeout:  30 * time.Second,
		QuickTimeout:    10 * time.Second,
		SubtopicTimeout: 30 * time.Second,
		SubtopicDelay:   time.Second,
		MaxSubtopics:    6,
	}
}

type Generator struct {
	llm   llm.Completer
	opts  Options
	log   *slog.Logger
	sleep func(context.Context, time.Duration) error
}

// New accepts a nil completer; Generate then reports llm.ErrNoBackend.
func New(c llm.Completer, opts Options, log *slog.Logger) *Generator {
	if opts.MaxSubtopics <= 0 {
		opts.MaxSubtopics = 6
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{llm: c, opts: opts, log: log, sleep: sleepCtx}
}

func (g *Generator) available() bool {
	if g.llm == nil {
		return false
	}
	if a, ok := g.llm.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// FallbackContent is the stand-in for a subtopic whose generation failed.
func FallbackContent(subtopic string) string {
	return fmt.Sprintf("Content for %q could not be generated. Review the source material covering %s.", subtopic, subtopic)
}

// Generate proposes subtopics for text and writes content for each. A
// failed subtopic gets FallbackContent and never stops the others.
func (g *Generator) Generate(ctx context.Context, text, topic string) Result {
	text = strings.TrimSpace(text)
	topic = strings.TrimSpace(topic)
	if !g.available() {
		return Result{Items: []document.ContentRow{}, Error: llm.ErrNoBackend.Error()}
	}
	if text == "" {
		return Result{Items: []document.ContentRow{}, Error: "no text to generate from"}
	}

	log := g.log.With("topic", topic)
	var notes []string

	chapter, subtopics, err := g.analyze(ctx, text, topic)
	if err != nil {
		log.Warn("subtopic analysis failed, using generic subtopics", "error", err)
		notes = append(notes, "analysis failed: "+err.Error())
		subtopics = GenericSubtopics
	}
	if topic == "" {
		topic = chapter
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if len(subtopics) > g.opts.MaxSubtopics {
		subtopics = subtopics[:g.opts.MaxSubtopics]
	}

	items := make([]document.ContentRow, 0, len(subtopics))
	failed := 0
	for i, sub := range subtopics {
		if i > 0 && g.opts.SubtopicDelay > 0 {
			if err := g.sleep(ctx, g.opts.SubtopicDelay); err != nil {
				notes = append(notes, "stopped early: "+err.Error())
				break
			}
		}
		if err := ctx.Err(); err != nil {
			notes = append(notes, "stopped early: "+err.Error())
			break
		}
		content, err := g.subtopic(ctx, text, topic, sub)
		if err != nil {
			log.Warn("subtopic generation failed, using fallback", "subtopic", sub, "error", err)
			content = FallbackContent(sub)
			failed++
		}
		items = append(items, document.ContentRow{Topic: topic, Subtopic: sub, Content: content})
	}
	if failed > 0 {
		notes = append(notes, fmt.Sprintf("%d of %d subtopics used fallback content", failed, len(items)))
	}

	if len(items) == 0 {
		items = append(items, document.ContentRow{
			Topic:    topic,
			Subtopic: DefaultSubtopic,
			Content:  chunker.Prefix(text, fallbackChars),
		})
	}

	log.Info("content generated", "items", len(items), "fallbacks", failed)
	return Result{Success: true, Items: items, Error: strings.Join(notes, "; ")}
}

type analysis struct {
	Chapter   string   `json:"chapter"`
	Subtopics []string `json:"subtopics"`
}

// analyze returns a chapter label and at least three subtopics, trying the
// full analysis first and the quick list second.
func (g *Generator) analyze(ctx context.Context, text, topic string) (string, []string, error) {
	excerpt := chunker.Prefix(text, analyzeChars)

	raw, err := g.complete(ctx, g.opts.AnalyzeTimeout, buildAnalyzePrompt(topic, excerpt))
	if err == nil {
		a, perr := parseAnalysis(raw)
		subs := cleanLabels(a.Subtopics)
		if perr == nil && len(subs) >= 3 {
			return cleanLabel(a.Chapter, 80), subs, nil
		}
		if perr != nil {
			err = perr
		} else {
			err = fmt.Errorf("only %d usable subtopics", len(subs))
		}
	}
	g.log.Debug("analysis unusable, trying quick subtopics", "error", err)

	raw, qerr := g.complete(ctx, g.opts.QuickTimeout, buildQuickPrompt(chunker.Prefix(text, analyzeChars/2)))
	if qerr != nil {
		return "", nil, errors.Join(err, qerr)
	}
	subs := cleanLabels(strings.Split(llm.StripCodeFence(raw), "\n"))
	if len(subs) < 3 {
		return "", nil, errors.Join(err, fmt.Errorf("quick list gave %d usable subtopics", len(subs)))
	}
	return "", subs, nil
}

func parseAnalysis(raw string) (analysis, error) {
	var a analysis
	body := llm.StripCodeFence(raw)
	if err := json.Unmarshal([]byte(body), &a); err == nil {
		return a, nil
	}
	if found := llm.FindJSON(raw); found != "" {
		if err := json.Unmarshal([]byte(found), &a); err == nil {
			return a, nil
		}
		var list []string
		if err := json.Unmarshal([]byte(found), &list); err == nil {
			return analysis{Subtopics: list}, nil
		}
	}
	return a, fmt.Errorf("analysis response is not JSON: %s", truncate(raw, 80))
}

func (g *Generator) subtopic(ctx context.Context, text, topic, sub string) (string, error) {
	out, err := g.complete(ctx, g.opts.SubtopicTimeout, buildSubtopicPrompt(topic, sub, subtopicWindow(text, sub, windowChars)))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(llm.StripCodeFence(out))
	if out == "" {
		return "", errors.New("empty completion")
	}
	return ToMathJax(out), nil
}

func (g *Generator) complete(ctx context.Context, timeout time.Duration, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	type reply struct {
		out string
		err error
	}
	// The backend may ignore ctx; the timeout still holds.
	ch := make(chan reply, 1)
	go func() {
		out, err := g.llm.Complete(ctx, prompt)
		ch <- reply{out, err}
	}()
	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// subtopicWindow picks the text around the first mention of sub, or the
// start of text when it is not mentioned.
func subtopicWindow(text, sub string, n int) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(sub))
	if idx <= 0 || len(strings.ToLower(text)) != len(text) {
		return chunker.Window(text, n)
	}
	start := max(0, idx-n/5)
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	return chunker.Window(text[start:], n)
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
