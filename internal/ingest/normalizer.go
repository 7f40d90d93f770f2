package ingest

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// TruncateText cuts a string to at most maxLen bytes, appending ellipsis if
// truncated. The cut never splits a UTF-8 sequence.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut, suffix := maxLen, ""
	if maxLen > 3 {
		cut, suffix = maxLen-3, "..."
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}

// Normalize flattens a raw field value into a single display string.
//
// Objects with a code and a description (or name) render as "code - desc",
// objects with only a code render as the code, and any other object falls
// back to its compact JSON so nothing is silently dropped. Arrays are
// normalized element-wise and joined with "; ".
func Normalize(v Value) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindString, KindNumber, KindBool:
		return v.Text
	case KindObject:
		desc := v.Description
		if desc == "" {
			desc = v.Name
		}
		if v.Code != "" && desc != "" {
			return v.Code + " - " + desc
		}
		if v.Code != "" {
			return v.Code
		}
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	case KindArray:
		parts := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			parts = append(parts, Normalize(item))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// NormalizeRecord renders the given fields of a record, in order. Missing
// fields become empty cells.
func NormalizeRecord(r Record, fields []string) []string {
	row := make([]string, len(fields))
	for i, field := range fields {
		row[i] = sanitizeUTF8(Normalize(r.Get(field)))
	}
	return row
}

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup from free text (award descriptions occasionally
// carry HTML fragments) and collapses whitespace.
func SanitizeText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return cleanText(s)
	}
	stripped := strictPolicy.Sanitize(s)
	return cleanText(html.UnescapeString(stripped))
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
