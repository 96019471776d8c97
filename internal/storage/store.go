package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docentgo/internal/models"
)

// ErrStoreUnavailable marks a write that could not be persisted. Callers
// are expected to keep going in memory; the error exists so they can log
// the degradation, not so they can abort.
var ErrStoreUnavailable = errors.New("durable store unavailable")

// Store owns the two durable collections: conversations and messages.
// A Store over a nil DB handle is valid and turns every operation into a
// no-op, which is how the shell degrades when no persistent storage is
// available.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Available reports whether writes can reach disk.
func (s *Store) Available() bool {
	return s != nil && s.db != nil
}

// CreateConversation inserts the conversation row. The row must exist
// before any of its messages are written.
func (s *Store) CreateConversation(ctx context.Context, id, title string) error {
	if !s.Available() {
		return nil
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("conversation id is required")
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?)`,
		id, title, now,
	); err != nil {
		return fmt.Errorf("%w: create conversation: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ListConversations returns all conversations, newest first.
func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	if !s.Available() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at FROM conversations ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// AppendMessage stores a message and returns the assigned sequence id.
// Messages are append-only; there is no update or single-delete path.
func (s *Store) AppendMessage(ctx context.Context, msg models.Message) (int64, error) {
	if !s.Available() {
		return 0, nil
	}
	if msg.ConversationID == "" {
		return 0, errors.New("conversation_id is required")
	}
	sources, err := encodeSources(msg.Sources)
	if err != nil {
		return 0, fmt.Errorf("encode sources: %w", err)
	}
	now := msg.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.Role, msg.Content, sources, now,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert message: %v", ErrStoreUnavailable, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("message id: %w", err)
	}
	return id, nil
}

// ListMessages returns a conversation's messages in append order. The
// sequence id, not the timestamp, decides ordering so same-instant writes
// stay stable.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if !s.Available() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, sources, created_at FROM messages WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var (
			m       models.Message
			sources sql.NullString
		)
		if err := rows.Scan(&m.SequenceID, &m.ConversationID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.Sources, err = decodeSources(sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// HasConversation reports whether the conversation row exists.
func (s *Store) HasConversation(ctx context.Context, id string) (bool, error) {
	if !s.Available() {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup conversation: %w", err)
	}
	return true, nil
}

// WipeAll removes both collections in one transaction so no orphaned
// messages survive an account deletion.
func (s *Store) WipeAll(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wipe: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("wipe messages: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return fmt.Errorf("wipe conversations: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit wipe: %w", err)
	}
	return nil
}

func encodeSources(sources []string) (sql.NullString, error) {
	if len(sources) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeSources(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var sources []string
	if err := json.Unmarshal([]byte(raw.String), &sources); err != nil {
		return nil, err
	}
	return sources, nil
}
