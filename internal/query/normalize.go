package query

import (
	"regexp"
	"strings"
)

// rule is one deterministic post-processing transform applied to raw model
// output.
type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// normalizeRules strips the source-language labels the model tends to leak
// despite the prompt rules, canonicalizes the "Tafsiir:" marker, and
// collapses runs of blank lines into a single paragraph break.
var normalizeRules = []rule{
	{regexp.MustCompile(`(?i):?[ \t]*Carabi[ \t]*:?`), ""},
	{regexp.MustCompile(`(?i)\*\*Soomaali\*\*?[ \t]*:?`), "**Tafsiir:**"},
	{regexp.MustCompile(`(?i)Soomaali[ \t]*:[ \t]*`), "Tafsiir: "},
	{regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`), "\n\n"},
}

// normalizeAnswer applies the post-processing rules to raw generated text.
// It is a pure text transform, not an LLM call.
func normalizeAnswer(raw string) string {
	out := raw
	for _, r := range normalizeRules {
		out = r.pattern.ReplaceAllString(out, r.replacement)
	}
	return strings.TrimSpace(out)
}
