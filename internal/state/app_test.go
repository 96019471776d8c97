package state

import (
	"context"
	"testing"

	"docentgo/internal/models"
)

type fakeLoader struct {
	messages map[string][]models.Message
	err      error
}

func (f *fakeLoader) ListMessages(_ context.Context, id string) ([]models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages[id], nil
}

func TestCellNotifiesSynchronously(t *testing.T) {
	cell := NewCell(0)

	var seen []int
	cell.Subscribe(func(v int) { seen = append(seen, v) })
	cell.Subscribe(func(v int) { seen = append(seen, v*10) })

	cell.Set(1)
	cell.Update(func(v int) int { return v + 1 })

	if len(seen) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(seen))
	}
	want := []int{1, 10, 2, 20}
	for i, v := range want {
		if seen[i] != v {
			t.Fatalf("notification %d: expected %d, got %d", i, v, seen[i])
		}
	}
	if cell.Get() != 2 {
		t.Fatalf("expected value 2, got %d", cell.Get())
	}
}

func TestLoadConversationReplacesMessagesAndMarker(t *testing.T) {
	loader := &fakeLoader{messages: map[string][]models.Message{
		"c1": {
			{SequenceID: 1, ConversationID: "c1", Role: models.RoleUser, Content: "hi"},
			{SequenceID: 2, ConversationID: "c1", Role: models.RoleAssistant, Content: "hello"},
		},
	}}
	app := NewAppState(loader)

	app.AppendLocal(models.Message{Role: models.RoleUser, Content: "stale draft"})
	if err := app.LoadConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("load: %v", err)
	}

	msgs := app.ActiveMessages.Get()
	if len(msgs) != 2 || msgs[0].Content != "hi" || msgs[1].Content != "hello" {
		t.Fatalf("messages not replaced: %#v", msgs)
	}
	if app.ActiveConversationID.Get() != "c1" {
		t.Fatalf("active id not set")
	}
	if app.Marker() != "c1" {
		t.Fatalf("marker not set")
	}
}

func TestStartNewConversationClearsEverything(t *testing.T) {
	loader := &fakeLoader{messages: map[string][]models.Message{
		"c1": {{SequenceID: 1, ConversationID: "c1", Role: models.RoleUser, Content: "hi"}},
	}}
	app := NewAppState(loader)
	if err := app.LoadConversation(context.Background(), "c1"); err != nil {
		t.Fatalf("load: %v", err)
	}

	app.StartNewConversation()
	if app.ActiveConversationID.Get() != "" {
		t.Fatalf("active id not cleared")
	}
	if len(app.ActiveMessages.Get()) != 0 {
		t.Fatalf("messages not cleared")
	}
	if app.Marker() != "" {
		t.Fatalf("marker not cleared")
	}
}

func TestAppendLocalIsOptimistic(t *testing.T) {
	app := NewAppState(&fakeLoader{})

	var notified int
	app.ActiveMessages.Subscribe(func([]models.Message) { notified++ })

	app.AppendLocal(models.Message{Role: models.RoleUser, Content: "one"})
	app.AppendLocal(models.Message{Role: models.RoleAssistant, Content: "two"})

	msgs := app.ActiveMessages.Get()
	if len(msgs) != 2 || msgs[0].Content != "one" || msgs[1].Content != "two" {
		t.Fatalf("append order broken: %#v", msgs)
	}
	if notified != 2 {
		t.Fatalf("expected 2 notifications, got %d", notified)
	}
}

func TestRestoreLastClearsDanglingMarker(t *testing.T) {
	loader := &fakeLoader{messages: map[string][]models.Message{}}
	app := NewAppState(loader)
	app.AdoptConversation("gone")

	if err := app.RestoreLast(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if app.Marker() != "" {
		t.Fatalf("dangling marker not cleared")
	}
}

func TestRestoreLastReloadsMessages(t *testing.T) {
	loader := &fakeLoader{messages: map[string][]models.Message{
		"c9": {{SequenceID: 5, ConversationID: "c9", Role: models.RoleUser, Content: "persisted"}},
	}}
	app := NewAppState(loader)
	app.AdoptConversation("c9")
	app.ActiveMessages.Set(nil) // simulate a fresh tab

	if err := app.RestoreLast(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	msgs := app.ActiveMessages.Get()
	if len(msgs) != 1 || msgs[0].Content != "persisted" {
		t.Fatalf("messages not restored: %#v", msgs)
	}
}
