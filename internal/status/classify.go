package status

import (
	"regexp"
	"strings"
)

// Kind is the presentation-level classification of a log entry. It is
// inferred from the text, never stored; the core contract is only the
// order and completeness of entries.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindNeutral Kind = "neutral"
)

// Crawlers prefix their lines with "HH:MM:SS - LEVEL - text".
var timestampPrefix = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\s*-\s*(?:[A-Z]+\s*-\s*)?`)

// Classify strips any timestamp prefix and buckets the line by keyword.
func Classify(text string) (string, Kind) {
	clean := timestampPrefix.ReplaceAllString(text, "")
	switch {
	case strings.Contains(clean, "ERROR"),
		strings.Contains(clean, "Error"),
		strings.Contains(clean, "failed"),
		strings.Contains(clean, "404"):
		return clean, KindError
	case strings.Contains(clean, "Reading"),
		strings.Contains(clean, "Crawling"),
		strings.Contains(clean, "Success"):
		return clean, KindSuccess
	default:
		return clean, KindNeutral
	}
}
