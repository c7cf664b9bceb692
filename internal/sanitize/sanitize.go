// Package sanitize scrubs persona self-references from completion text.
//
// Rules are evaluated in order on every pass:
//
//	pattern                    replacement
//	I'm <name>                 "I am"
//	<name> here                ""
//	<name>                     "I"
//
// <name> is the persona name or any alias. Passes repeat until the text
// stops changing, so Sanitize(Sanitize(x)) == Sanitize(x).
package sanitize

import (
	"regexp"
	"strings"
)

// maxPasses bounds the fixed-point loop for rule sets whose replacements
// could reintroduce a match.
const maxPasses = 16

// Rule rewrites every match of Pattern with Replacement.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Sanitizer applies an ordered list of rules.
type Sanitizer struct {
	rules []Rule
}

// New creates a sanitizer from rules, applied in the given order.
func New(rules ...Rule) *Sanitizer {
	return &Sanitizer{rules: rules}
}

// ForPersona builds the default self-reference rules for a persona name and
// its aliases. Blank names are ignored.
func ForPersona(name string, aliases ...string) *Sanitizer {
	return New(PersonaRules(append([]string{name}, aliases...)...)...)
}

// PersonaRules returns the self-reference rule table for the given names.
func PersonaRules(names ...string) []Rule {
	var quoted []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			quoted = append(quoted, regexp.QuoteMeta(n))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	alt := `(?:` + strings.Join(quoted, "|") + `)`
	return []Rule{
		{Pattern: regexp.MustCompile(`\bI(?:'|’)m\s+` + alt + `\b`), Replacement: "I am"},
		{Pattern: regexp.MustCompile(`\b` + alt + `\s+here\b`), Replacement: ""},
		{Pattern: regexp.MustCompile(`\b` + alt + `\b`), Replacement: "I"},
	}
}

// Sanitize rewrites text until no rule changes it.
func (s *Sanitizer) Sanitize(text string) string {
	if s == nil || len(s.rules) == 0 {
		return text
	}
	for i := 0; i < maxPasses; i++ {
		next := s.pass(text)
		if next == text {
			return next
		}
		text = next
	}
	return text
}

func (s *Sanitizer) pass(text string) string {
	for _, r := range s.rules {
		text = r.Pattern.ReplaceAllLiteralString(text, r.Replacement)
	}
	return text
}
