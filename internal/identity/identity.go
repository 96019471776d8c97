// Package identity resolves who the shell is acting for. Access control
// itself lives upstream; the shell only surfaces the tri-state signal so
// presentation can gate its chrome on it.
package identity

import (
	"encoding/json"
	"os"
	"time"

	"docentgo/internal/state"
)

type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Session is the locally cached identity token.
type Session struct {
	Token       string    `json:"token"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Provider reads the session file once and exposes the result as an
// observable cell, starting from Loading.
type Provider struct {
	path string

	State *state.Cell[State]
	Name  *state.Cell[string]
}

func NewProvider(path string) *Provider {
	return &Provider{
		path:  path,
		State: state.NewCell(StateLoading),
		Name:  state.NewCell(""),
	}
}

// Resolve reads and validates the session file, then flips the cell out of
// Loading. A missing or expired token is Unauthenticated, never an error.
func (p *Provider) Resolve() {
	session, ok := p.load()
	if !ok {
		p.Name.Set("")
		p.State.Set(StateUnauthenticated)
		return
	}
	p.Name.Set(session.DisplayName)
	p.State.Set(StateAuthenticated)
}

func (p *Provider) load() (Session, bool) {
	if p.path == "" {
		return Session{}, false
	}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return Session{}, false
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, false
	}
	if session.Token == "" {
		return Session{}, false
	}
	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(time.Now()) {
		return Session{}, false
	}
	return session, true
}
