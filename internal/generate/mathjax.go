package generate

import (
	"regexp"
	"strings"
)

// Inline formula patterns. Terms are LaTeX commands, f(x) applications,
// variables carrying a subscript or exponent, single letters and numbers;
// a product may juxtapose decorated terms ("a_n z^n") but not plain words.
const (
	texCmd  = `\\[a-zA-Z]+(?:\{[^{}]*\})*`
	texFn   = `[A-Z]\([a-z]\)`
	texSub  = `_(?:\{[^{}]+\}|[A-Za-z0-9])`
	texSup  = `\^(?:\{[^{}]+\}|[A-Za-z0-9]+)`
	texDVar = `[A-Za-z](?:` + texSub + `(?:` + texSup + `)?|` + texSup + `)`
	texNum  = `[0-9]+(?:\.[0-9]+)?`

	texFactor  = `(?:(?:` + texNum + `)?(?:` + texCmd + `|` + texFn + `|` + texDVar + `|[A-Za-z])|` + texNum + `)`
	texExtra   = `(?:` + texCmd + `|` + texFn + `|` + texDVar + `|` + texNum + `)`
	texProduct = texFactor + `(?: ?` + texExtra + `)*`
	texExpr    = texProduct + `(?:[ \t]*[-+*/][ \t]*` + texProduct + `)*`

	texBefore = `(?:^|[^A-Za-z0-9_\\$])`
	texAfter  = `(?:$|[^A-Za-z0-9_{^$])`
)

var (
	equationRe   = regexp.MustCompile(texBefore + `(` + texExpr + `[ \t]*=[ \t]*` + texExpr + `)` + texAfter)
	standaloneRe = regexp.MustCompile(texBefore + `(` + `\\[a-zA-Z]+(?:\{[^{}]*\})+` + `|` + `[A-Za-z]` + texSup + `)` + texAfter)

	// Spans the model already delimited, display or inline.
	mathSpanRe = regexp.MustCompile(`\$\$[^$]*\$\$|\$[^$\n]+\$`)
)

// ToMathJax wraps inline formulas in generated prose with $$ delimiters.
// Text already inside $ or $$ delimiters is left alone.
func ToMathJax(content string) string {
	content = outsideMath(content, func(s string) string { return wrapGroup(s, equationRe) })
	return outsideMath(content, func(s string) string { return wrapGroup(s, standaloneRe) })
}

// outsideMath applies fn to the segments of s between delimited spans.
func outsideMath(s string, fn func(string) string) string {
	var b strings.Builder
	last := 0
	for _, m := range mathSpanRe.FindAllStringIndex(s, -1) {
		b.WriteString(fn(s[last:m[0]]))
		b.WriteString(s[m[0]:m[1]])
		last = m[1]
	}
	b.WriteString(fn(s[last:]))
	return b.String()
}

func wrapGroup(s string, re *regexp.Regexp) string {
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
		start, end := m[2], m[3]
		b.WriteString(s[last:start])
		b.WriteString("$$")
		b.WriteString(s[start:end])
		b.WriteString("$$")
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}
