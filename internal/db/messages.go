package db

import (
	"context"

	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
)

// InsertMessage appends a message to a request thread. created_at never goes
// below the latest message already in the thread.
func (db *Database) InsertMessage(ctx context.Context, m models.Message) (*models.Message, error) {
	if err := store.ValidateMessageContent(m.Content); err != nil {
		return nil, err
	}
	if err := db.ready(); err != nil {
		return nil, err
	}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO messages (id, request_id, sender_id, sender_name, content, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6,
			GREATEST($7::timestamptz, COALESCE((SELECT max(created_at) FROM messages WHERE request_id = $2), $7::timestamptz)))
		RETURNING created_at`,
		m.ID, m.RequestID, m.SenderID, m.SenderName, m.Content, m.IsAdmin, m.CreatedAt,
	).Scan(&m.CreatedAt)
	if err != nil {
		return nil, classify(err, "insert message (request "+m.RequestID+")")
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

// ListMessages returns the thread of a request, oldest first
func (db *Database) ListMessages(ctx context.Context, requestID string) ([]models.Message, error) {
	if err := db.requestExists(ctx, requestID); err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, request_id, sender_id, sender_name, content, is_admin, created_at
		FROM messages WHERE request_id = $1 ORDER BY created_at, position`, requestID)
	if err != nil {
		return nil, classify(err, "list messages")
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RequestID, &m.SenderID, &m.SenderName, &m.Content, &m.IsAdmin, &m.CreatedAt); err != nil {
			return nil, classify(err, "scan message")
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	return messages, classify(rows.Err(), "list messages")
}
