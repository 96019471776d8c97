package pipeline

import (
	"fmt"
	"regexp"

	"docentgo/internal/models"
)

// urlPattern matches the first URL in the raw utterance; only that one is
// crawled, whatever else the text contains.
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

func firstURL(text string) string {
	return urlPattern.FindString(text)
}

// buildDirective turns preferences into the instruction string prepended
// to the raw query before inference.
func buildDirective(p models.Preferences) string {
	var directive string
	switch p.Verbosity {
	case models.VerbosityConcise:
		directive += "You are in CONCISE mode. Give code immediately. No conversational filler. "
	case models.VerbosityDetailed:
		directive += "You are in DETAILED mode. Explain concepts thoroughly with examples. "
	}
	if p.StrictOutput {
		directive += "CRITICAL: ALL CODE MUST BE STRICTLY TYPED. NO UNTYPED VALUES ALLOWED. "
	}
	return directive
}

func directiveQuery(p models.Preferences, text string) string {
	return fmt.Sprintf("[SYSTEM_INSTRUCTION: %s] User Query: %s", buildDirective(p), text)
}

// deriveTitle takes the first 30 runes of the raw user text, never the
// directive-prefixed query, ellipsized when truncated.
func deriveTitle(text string) string {
	const maxRunes = 30
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
