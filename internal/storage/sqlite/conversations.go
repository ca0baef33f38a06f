package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freightdesk/dispatch-ai/internal/domain"
)

// FindRecentConversation returns the newest conversation for (userID, console)
// whose last activity falls inside the window, or ErrNotFound.
func (s *Store) FindRecentConversation(ctx context.Context, userID, console string, window time.Duration) (*domain.Conversation, error) {
	cutoff := time.Now().UTC().Add(-window)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, console, created_at, updated_at
		FROM conversations
		WHERE user_id = ? AND console = ? AND updated_at >= ?
		ORDER BY updated_at DESC
		LIMIT 1`,
		userID, console, toMillis(cutoff),
	)
	return scanConversation(row)
}

// CreateConversation starts a fresh conversation for (userID, console).
func (s *Store) CreateConversation(ctx context.Context, userID, console string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Console:   console,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, console, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Console, toMillis(conv.CreatedAt), toMillis(conv.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// ConversationMessages returns all messages of a conversation, oldest first.
func (s *Store) ConversationMessages(ctx context.Context, conversationID string) ([]domain.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, actions_json, created_at
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ConversationMessage
	for rows.Next() {
		var m domain.ConversationMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.ActionsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		m.CreatedAt = fromMillis(createdAt)
		out = append(out, m)
	}
	return out, rowsErr(rows)
}

// AppendConversationMessages appends messages, bumps the conversation's
// updated_at, and trims the oldest rows past keep.
func (s *Store) AppendConversationMessages(ctx context.Context, conversationID string, msgs []domain.ConversationMessage, keep int) error {
	now := time.Now().UTC()
	for i, m := range msgs {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			// Preserve insertion order when several messages land in the
			// same millisecond.
			createdAt = now.Add(time.Duration(i) * time.Millisecond)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO conversation_messages (id, conversation_id, role, content, actions_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, conversationID, m.Role, m.Content, m.ActionsJSON, toMillis(createdAt),
		)
		if err != nil {
			return fmt.Errorf("insert conversation message: %w", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?`,
		toMillis(now), conversationID,
	); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if keep > 0 {
		if _, err := s.db.ExecContext(ctx, `
			DELETE FROM conversation_messages
			WHERE conversation_id = ? AND id NOT IN (
				SELECT id FROM conversation_messages
				WHERE conversation_id = ?
				ORDER BY created_at DESC, id DESC
				LIMIT ?
			)`,
			conversationID, conversationID, keep,
		); err != nil {
			return fmt.Errorf("trim conversation: %w", err)
		}
	}
	return nil
}

func scanConversation(row *sql.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	var createdAt, updatedAt int64
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Console, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	conv.CreatedAt = fromMillis(createdAt)
	conv.UpdatedAt = fromMillis(updatedAt)
	return &conv, nil
}
