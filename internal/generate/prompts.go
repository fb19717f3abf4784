package generate

import (
	"fmt"
	"strings"
)

const analyzePrompt = `Analyze the following educational text. Identify the main chapter or topic it covers and 5 to 7 subtopics that together cover its content.
Return a JSON object with exactly these fields:

- "chapter": the main chapter or topic name (string, max 80 chars)
- "subtopics": list of 5 to 7 subtopic names (strings, max 60 chars each), in the order they appear

Rules:
- Subtopics must be specific to this text, not generic headings
- Do not number the subtopics
- Respond with ONLY the JSON object, no other text.`

const quickPrompt = `List 5 short subtopic titles that cover the following text.
Write one title per line with no numbering, bullets or extra text.`

const subtopicPrompt = `Write study material for the subtopic below, using only the source text provided.

Rules:
- 80 to 150 words of clear explanatory prose for students
- Define key terms where they first appear
- Write every mathematical expression in LaTeX between $ signs
- Do not repeat the subtopic title as a heading
- Respond with the content only`

func buildAnalyzePrompt(topic, excerpt string) string {
	var sb strings.Builder
	sb.WriteString(analyzePrompt)
	sb.WriteString("\n\n---\n")
	if topic != "" {
		sb.WriteString(fmt.Sprintf("Known topic: %q\n", topic))
	}
	sb.WriteString("---\n")
	sb.WriteString(excerpt)
	return sb.String()
}

func buildQuickPrompt(excerpt string) string {
	return quickPrompt + "\n\n---\n" + excerpt
}

func buildSubtopicPrompt(topic, subtopic, window string) string {
	var sb strings.Builder
	sb.WriteString(subtopicPrompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString(fmt.Sprintf("Topic: %q\n", topic))
	sb.WriteString(fmt.Sprintf("Subtopic: %q\n", subtopic))
	sb.WriteString("---\n")
	sb.WriteString(window)
	return sb.String()
}

const analysisPrompt = `Analyze the following document content and describe:
1. Main topics and themes
2. Key concepts and definitions
3. Important examples or case studies
4. A short summary of each chapter or section
5. Educational value and learning objectives

Write plain prose with one short paragraph per point.`

func buildAnalysisPrompt(excerpt string) string {
	return analysisPrompt + "\n\n---\n" + excerpt
}
