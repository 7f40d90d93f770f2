package ingest

import (
	"strings"
)

// agencyFields are the four agency columns searched by AgencyMatcher.
var agencyFields = []string{
	"Awarding Agency",
	"Awarding Sub Agency",
	"Funding Agency",
	"Funding Sub Agency",
}

// AgencyMatcher decides whether a record belongs to the target agency by
// loose substring matching. Agency naming varies between full names and
// abbreviations, so a false positive is preferred over a missed award.
type AgencyMatcher struct {
	patterns []string
}

// NewAgencyMatcher lowercases, trims and dedupes patterns. An empty pattern
// set matches every record.
func NewAgencyMatcher(patterns []string) *AgencyMatcher {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		cleaned = append(cleaned, strings.ToLower(cleanText(p)))
	}
	return &AgencyMatcher{patterns: mergeUniqueFold(nil, cleaned)}
}

// ParsePatterns splits the pipe-separated form used by AGENCY_MATCH,
// e.g. "defense information systems agency|disa".
func ParsePatterns(raw string) []string {
	return SplitList(strings.ToLower(raw), "|")
}

// Patterns returns a copy of the active patterns.
func (m *AgencyMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Match reports whether any pattern occurs in the record's combined agency text.
func (m *AgencyMatcher) Match(r Record) bool {
	if m == nil || len(m.patterns) == 0 {
		return true
	}

	parts := make([]string, 0, len(agencyFields))
	for _, field := range agencyFields {
		parts = append(parts, Normalize(r.Get(field)))
	}
	hay := strings.ToLower(strings.Join(parts, " | "))

	for _, p := range m.patterns {
		if strings.Contains(hay, p) {
			return true
		}
	}
	return false
}
