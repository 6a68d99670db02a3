package feed

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips unsafe markup from feed-supplied HTML before it is stored.
// Feed content is arbitrary third-party input rendered into reader sessions.
type Sanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		policy: bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
	}
}

func (s *Sanitizer) Run(html string) string {
	if html == "" {
		return ""
	}
	return s.policy.Sanitize(html)
}

// PlainText strips all markup, for length heuristics and log lines.
func (s *Sanitizer) PlainText(html string) string {
	return strings.TrimSpace(s.strict.Sanitize(html))
}
