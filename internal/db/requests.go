package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, tracking_number, user_id, user_name, service_id, service_title,
	status, notes, attachments::text, created_at, updated_at`

// InsertRequest stores a new request row
func (db *Database) InsertRequest(ctx context.Context, r models.Request) (*models.Request, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	attachments, err := encodeAttachments(r.Attachments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO requests (id, tracking_number, user_id, user_name, service_id, service_title,
			status, notes, attachments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11)`,
		r.ID, r.TrackingNumber, r.UserID, r.UserName, r.ServiceID, r.ServiceTitle,
		string(r.Status), r.Notes, attachments, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err, "insert request")
	}
	return &r, nil
}

// GetRequest returns one request by ID
func (db *Database) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	r, err := scanRequest(db.Pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "request "+id)
	}
	return r, nil
}

// ListRequests returns requests newest first, optionally for one user
func (db *Database) ListRequests(ctx context.Context, userID string) ([]models.Request, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	var rows pgx.Rows
	var err error
	if userID == "" {
		rows, err = db.Pool.Query(ctx, `SELECT `+requestColumns+` FROM requests ORDER BY created_at DESC, position DESC`)
	} else {
		rows, err = db.Pool.Query(ctx, `SELECT `+requestColumns+` FROM requests WHERE user_id = $1 ORDER BY created_at DESC, position DESC`, userID)
	}
	if err != nil {
		return nil, classify(err, "list requests")
	}
	defer rows.Close()

	requests := make([]models.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, classify(err, "scan request")
		}
		requests = append(requests, *r)
	}
	return requests, classify(rows.Err(), "list requests")
}

// UpdateRequestStatus locks the request row, lets decide veto the change, then
// writes the new status and the history entry in the same transaction
func (db *Database) UpdateRequestStatus(ctx context.Context, requestID string, decide store.StatusDecider, change models.StatusChange) (*models.Request, error) {
	if err := db.ready(); err != nil {
		return nil, err
	}
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, classify(err, "begin status update")
	}
	defer tx.Rollback(ctx)

	current, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, requestID))
	if err != nil {
		return nil, classify(err, "request "+requestID)
	}
	if decide != nil {
		if err := decide(current.Status); err != nil {
			return nil, err
		}
	}

	change.RequestID = current.ID
	change.OldStatus = current.Status
	change.CreatedAt = store.NextUpdatedAt(current.UpdatedAt, change.CreatedAt)

	if _, err := tx.Exec(ctx,
		`UPDATE requests SET status = $2, updated_at = $3 WHERE id = $1`,
		requestID, string(change.NewStatus), change.CreatedAt,
	); err != nil {
		return nil, classify(err, "update request status")
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO request_status_changes (id, request_id, old_status, new_status, changed_by, reason, forced, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		change.ID, change.RequestID, string(change.OldStatus), string(change.NewStatus),
		change.ChangedBy, change.Reason, change.Forced, change.CreatedAt,
	); err != nil {
		return nil, classify(err, "insert status change")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err, "commit status update")
	}

	current.Status = change.NewStatus
	current.UpdatedAt = change.CreatedAt
	return current, nil
}

// ListStatusHistory returns the status changes of a request, oldest first
func (db *Database) ListStatusHistory(ctx context.Context, requestID string) ([]models.StatusChange, error) {
	if err := db.requestExists(ctx, requestID); err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, request_id, old_status, new_status, changed_by, reason, forced, created_at
		FROM request_status_changes WHERE request_id = $1 ORDER BY created_at, position`, requestID)
	if err != nil {
		return nil, classify(err, "list status history")
	}
	defer rows.Close()

	history := make([]models.StatusChange, 0)
	for rows.Next() {
		var c models.StatusChange
		var oldStatus, newStatus string
		if err := rows.Scan(&c.ID, &c.RequestID, &oldStatus, &newStatus, &c.ChangedBy, &c.Reason, &c.Forced, &c.CreatedAt); err != nil {
			return nil, classify(err, "scan status change")
		}
		c.OldStatus = models.RequestStatus(oldStatus)
		c.NewStatus = models.RequestStatus(newStatus)
		c.CreatedAt = c.CreatedAt.UTC()
		history = append(history, c)
	}
	return history, classify(rows.Err(), "list status history")
}

func (db *Database) requestExists(ctx context.Context, requestID string) error {
	if err := db.ready(); err != nil {
		return err
	}
	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, requestID).Scan(&exists); err != nil {
		return classify(err, "check request")
	}
	if !exists {
		return fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
	}
	return nil
}

func scanRequest(row pgx.Row) (*models.Request, error) {
	var r models.Request
	var status, attachments string
	if err := row.Scan(&r.ID, &r.TrackingNumber, &r.UserID, &r.UserName, &r.ServiceID, &r.ServiceTitle,
		&status, &r.Notes, &attachments, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RequestStatus(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if attachments != "" && attachments != "{}" {
		if err := json.Unmarshal([]byte(attachments), &r.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}
	return &r, nil
}

func encodeAttachments(att map[string]string) (string, error) {
	if len(att) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(att)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
