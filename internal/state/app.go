package state

import (
	"context"
	"fmt"
	"sync"

	"docentgo/internal/models"
)

// MessageLoader is the slice of the durable store the state layer needs.
type MessageLoader interface {
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// AppState is the in-memory mirror of the active conversation plus the
// transient UI flags. It is constructed once at startup and shared by
// reference; there is no teardown, its lifetime is the shell's.
type AppState struct {
	ActiveConversationID *Cell[string]
	ActiveMessages       *Cell[[]models.Message]
	LinkMode             *Cell[bool]
	SidebarOpen          *Cell[bool]

	loader MessageLoader

	// lastActive is the tab-scoped marker that lets a reload restore the
	// conversation the user was looking at. It is deliberately not durable.
	markerMu   sync.Mutex
	lastActive string
}

func NewAppState(loader MessageLoader) *AppState {
	return &AppState{
		ActiveConversationID: NewCell(""),
		ActiveMessages:       NewCell[[]models.Message](nil),
		LinkMode:             NewCell(false),
		SidebarOpen:          NewCell(true),
		loader:               loader,
	}
}

// LoadConversation replaces the active message list with the persisted
// messages for id, makes id active, and records the last-active marker.
func (a *AppState) LoadConversation(ctx context.Context, id string) error {
	msgs, err := a.loader.ListMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", id, err)
	}
	a.setMarker(id)
	a.ActiveConversationID.Set(id)
	a.ActiveMessages.Set(msgs)
	return nil
}

// StartNewConversation clears the active conversation and its marker.
func (a *AppState) StartNewConversation() {
	a.setMarker("")
	a.ActiveConversationID.Set("")
	a.ActiveMessages.Set(nil)
}

// AppendLocal optimistically appends to the active list without waiting
// for persistence, so the transcript updates immediately.
func (a *AppState) AppendLocal(msg models.Message) {
	a.ActiveMessages.Update(func(msgs []models.Message) []models.Message {
		return append(msgs, msg)
	})
}

// AdoptConversation makes id active and marks it last-active without
// reloading messages. The pipeline uses it when it creates a conversation
// whose messages are already mirrored in memory.
func (a *AppState) AdoptConversation(id string) {
	a.setMarker(id)
	a.ActiveConversationID.Set(id)
}

// RestoreLast reloads the conversation recorded by the marker, if any.
// A conversation that no longer exists simply clears the marker; a reload
// right after an account wipe must not error out.
func (a *AppState) RestoreLast(ctx context.Context) error {
	id := a.Marker()
	if id == "" {
		return nil
	}
	msgs, err := a.loader.ListMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("restore conversation %s: %w", id, err)
	}
	if len(msgs) == 0 {
		a.setMarker("")
		return nil
	}
	a.ActiveConversationID.Set(id)
	a.ActiveMessages.Set(msgs)
	return nil
}

// Marker returns the tab-scoped last-active conversation id.
func (a *AppState) Marker() string {
	a.markerMu.Lock()
	defer a.markerMu.Unlock()
	return a.lastActive
}

func (a *AppState) setMarker(id string) {
	a.markerMu.Lock()
	a.lastActive = id
	a.markerMu.Unlock()
}
