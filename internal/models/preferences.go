package models

import "fmt"

type Verbosity string

const (
	VerbosityConcise  Verbosity = "concise"
	VerbosityBalanced Verbosity = "balanced"
	VerbosityDetailed Verbosity = "detailed"
)

type Theme string

const (
	ThemeBlue    Theme = "blue"
	ThemePurple  Theme = "purple"
	ThemeEmerald Theme = "emerald"
	ThemeOrange  Theme = "orange"
)

// Preferences is the singleton per-client settings record. It is only
// mutated through an explicit Set and survives everything short of a
// full account wipe.
type Preferences struct {
	Verbosity    Verbosity `json:"verbosity"`
	StrictOutput bool      `json:"strict_output"`
	Theme        Theme     `json:"theme"`
	CrawlDepth   int       `json:"crawl_depth"`
}

// DefaultPreferences returns the record handed out before the user has
// ever saved anything.
func DefaultPreferences() Preferences {
	return Preferences{
		Verbosity:    VerbosityBalanced,
		StrictOutput: false,
		Theme:        ThemeBlue,
		CrawlDepth:   2,
	}
}

// Validate rejects values outside the enumerated sets before they reach
// disk.
func (p Preferences) Validate() error {
	switch p.Verbosity {
	case VerbosityConcise, VerbosityBalanced, VerbosityDetailed:
	default:
		return fmt.Errorf("invalid verbosity: %q", p.Verbosity)
	}
	switch p.Theme {
	case ThemeBlue, ThemePurple, ThemeEmerald, ThemeOrange:
	default:
		return fmt.Errorf("invalid theme: %q", p.Theme)
	}
	if p.CrawlDepth < 0 {
		return fmt.Errorf("crawl depth must be >= 0, got %d", p.CrawlDepth)
	}
	return nil
}
