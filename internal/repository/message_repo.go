package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatbridge/internal/models"
)

// ErrMessageIDConflict reports a message id already stored under another chat.
var ErrMessageIDConflict = errors.New("message id belongs to another chat")

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Save inserts messages in one batch. Re-sending a message id for the same
// chat (a retried request) leaves the stored row untouched; an id stored
// under a different chat fails with ErrMessageIDConflict.
func (r *MessageRepo) Save(ctx context.Context, messages ...*models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range messages {
		if len(m.Attachments) == 0 {
			m.Attachments = json.RawMessage("[]")
		}
		if m.Parts == nil {
			m.Parts = []models.Part{}
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		batch.Queue(`
			INSERT INTO messages (id, chat_id, role, parts, attachments, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			m.ID, m.ChatID, m.Role, m.Parts, m.Attachments, m.CreatedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	var skipped []*models.Message
	for _, m := range messages {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return fmt.Errorf("failed to save message %s: %w", m.ID, err)
		}
		if tag.RowsAffected() == 0 {
			skipped = append(skipped, m)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}

	for _, m := range skipped {
		var owner uuid.UUID
		if err := r.pool.QueryRow(ctx, "SELECT chat_id FROM messages WHERE id = $1", m.ID).Scan(&owner); err != nil {
			return fmt.Errorf("failed to check message %s: %w", m.ID, err)
		}
		if owner != m.ChatID {
			return fmt.Errorf("message %s: %w", m.ID, ErrMessageIDConflict)
		}
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m := &models.Message{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, chat_id, role, parts, attachments, created_at
		FROM messages WHERE id = $1`, id,
	).Scan(&m.ID, &m.ChatID, &m.Role, &m.Parts, &m.Attachments, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) ListByChat(ctx context.Context, chatID uuid.UUID) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_id, role, parts, attachments, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Parts, &m.Attachments, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteFrom removes the chat's messages created at or after ts.
func (r *MessageRepo) DeleteFrom(ctx context.Context, chatID uuid.UUID, ts time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM messages WHERE chat_id = $1 AND created_at >= $2", chatID, ts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
