package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSession(t *testing.T, dir string, s Session) string {
	t.Helper()
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write session: %v", err)
	}
	return path
}

func TestProviderStartsLoading(t *testing.T) {
	p := NewProvider("")
	if p.State.Get() != StateLoading {
		t.Fatalf("expected loading, got %s", p.State.Get())
	}
}

func TestResolveValidToken(t *testing.T) {
	path := writeSession(t, t.TempDir(), Session{
		Token:       "tok",
		DisplayName: "Ada",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	p := NewProvider(path)
	p.Resolve()
	if p.State.Get() != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", p.State.Get())
	}
	if p.Name.Get() != "Ada" {
		t.Fatalf("expected display name, got %q", p.Name.Get())
	}
}

func TestResolveExpiredOrMissingToken(t *testing.T) {
	expired := writeSession(t, t.TempDir(), Session{
		Token:     "tok",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	p := NewProvider(expired)
	p.Resolve()
	if p.State.Get() != StateUnauthenticated {
		t.Fatalf("expired token should be unauthenticated, got %s", p.State.Get())
	}

	p = NewProvider(filepath.Join(t.TempDir(), "absent.json"))
	p.Resolve()
	if p.State.Get() != StateUnauthenticated {
		t.Fatalf("missing file should be unauthenticated, got %s", p.State.Get())
	}
}
