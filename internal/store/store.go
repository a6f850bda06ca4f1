// Package store defines the persistence contracts shared by every backend
// (Postgres, SQLite, in-memory) and the error taxonomy surfaced to callers.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/enjaz/request-service/internal/models"
)

var (
	// ErrNotFound means a referenced agency, service, request or message id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument means the caller supplied a value the store refuses to persist.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidTransition means a status change does not follow the request status graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStoreUnavailable means the underlying persistence could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// CatalogStore persists agencies and services.
type CatalogStore interface {
	ListAgencies(ctx context.Context) ([]models.Agency, error)
	GetAgency(ctx context.Context, id string) (*models.Agency, error)
	CreateAgency(ctx context.Context, a models.Agency) (*models.Agency, error)
	UpdateAgency(ctx context.Context, a models.Agency) (*models.Agency, error)
	// DeleteAgency removes the agency and every service that references it in
	// one atomic write. Requests keep their service id and captured title.
	DeleteAgency(ctx context.Context, id string) error

	// ListServices returns services in insertion order; an empty agencyID lists all.
	ListServices(ctx context.Context, agencyID string) ([]models.Service, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
	CreateService(ctx context.Context, s models.Service) (*models.Service, error)
	UpdateService(ctx context.Context, s models.Service) (*models.Service, error)
	DeleteService(ctx context.Context, id string) error
}

// StatusDecider inspects the current status of a request inside the atomic
// update and returns an error to abort it.
type StatusDecider func(current models.RequestStatus) error

// RequestStore persists requests and their status history.
type RequestStore interface {
	InsertRequest(ctx context.Context, r models.Request) (*models.Request, error)
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	// ListRequests returns requests ordered by created_at descending; an empty
	// userID lists every request.
	ListRequests(ctx context.Context, userID string) ([]models.Request, error)
	// UpdateRequestStatus loads the request, runs decide against its status and,
	// when decide allows it, writes change.NewStatus, bumps updated_at and appends
	// change to the history. All of it happens in a single atomic write.
	UpdateRequestStatus(ctx context.Context, requestID string, decide StatusDecider, change models.StatusChange) (*models.Request, error)
	ListStatusHistory(ctx context.Context, requestID string) ([]models.StatusChange, error)
}

// MessageStore persists the append-only conversation thread of each request.
type MessageStore interface {
	// InsertMessage fails with ErrNotFound when the request does not exist.
	InsertMessage(ctx context.Context, m models.Message) (*models.Message, error)
	// ListMessages returns the thread ordered by created_at ascending.
	ListMessages(ctx context.Context, requestID string) ([]models.Message, error)
}

// Store is a complete backend.
type Store interface {
	CatalogStore
	RequestStore
	MessageStore
	Ping(ctx context.Context) error
	Close()
}

// NextUpdatedAt returns the updated_at value to write when a request last
// updated at prev is modified at now. The result is always strictly after prev
// at microsecond precision.
func NextUpdatedAt(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	floor := prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	if now.Before(floor) {
		return floor
	}
	return now
}

// ErrorKind names the taxonomy class of err for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
