package status

import (
	"fmt"
	"sync"
	"time"
)

// Entry is one line of a pipeline run's progress log.
type Entry struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Reporter collects the append-only log and current status label of the
// live pipeline run. It is reset at the start of each run, so a snapshot
// always describes exactly one attempt.
type Reporter struct {
	mu      sync.Mutex
	label   string
	entries []Entry
}

func NewReporter() *Reporter {
	return &Reporter{label: "Idle"}
}

// Reset clears the log and label for a new run.
func (r *Reporter) Reset() {
	r.mu.Lock()
	r.label = "Thinking..."
	r.entries = nil
	r.mu.Unlock()
}

// SetStatus updates the current status label.
func (r *Reporter) SetStatus(label string) {
	r.mu.Lock()
	r.label = label
	r.mu.Unlock()
}

// Logf appends one entry.
func (r *Reporter) Logf(format string, args ...any) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Text: fmt.Sprintf(format, args...), At: time.Now()})
	r.mu.Unlock()
}

// Append appends pre-formed lines, keeping their order. Used to splice in
// collaborator-produced logs (crawl output) verbatim.
func (r *Reporter) Append(lines []string) {
	if len(lines) == 0 {
		return
	}
	now := time.Now()
	r.mu.Lock()
	for _, line := range lines {
		r.entries = append(r.entries, Entry{Text: line, At: now})
	}
	r.mu.Unlock()
}

// Snapshot returns the current label and a copy of the log.
func (r *Reporter) Snapshot() (string, []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return r.label, out
}
