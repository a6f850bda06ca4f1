// Package lifecycle owns request creation and every status change. It is the
// only caller of RequestStore.UpdateRequestStatus.
package lifecycle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/enjaz/request-service/internal/logging"
	"github.com/enjaz/request-service/internal/metrics"
	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
	"github.com/google/uuid"
)

// Engine enforces the request status graph.
type Engine struct {
	requests store.RequestStore
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
	tracking func(time.Time) string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs replaces the uuid generator.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithTrackingNumbers replaces the tracking number generator.
func WithTrackingNumbers(gen func(time.Time) string) Option {
	return func(e *Engine) { e.tracking = gen }
}

// WithMetrics records lifecycle counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over the given request store.
func NewEngine(requests store.RequestStore, opts ...Option) *Engine {
	e := &Engine{
		requests: requests,
		now:      time.Now,
		newID:    uuid.NewString,
		tracking: TrackingNumber,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TrackingNumber formats REQ-<year>-<0..9999>. Numbers are random and not
// guaranteed unique.
func TrackingNumber(at time.Time) string {
	return fmt.Sprintf("REQ-%d-%d", at.Year(), rand.IntN(10000))
}

// CreateRequest submits a new request for service on behalf of the principal.
// Attachments are optional; any given must name one of the service's requirements.
// Calling it twice creates two requests.
func (e *Engine) CreateRequest(ctx context.Context, p models.Principal, service models.Service, notes string, attachments map[string]string) (*models.Request, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidArgument)
	}
	if strings.TrimSpace(service.ID) == "" {
		return nil, fmt.Errorf("%w: service is required", store.ErrInvalidArgument)
	}
	var att map[string]string
	for label, ref := range attachments {
		if !service.HasRequirement(label) {
			return nil, fmt.Errorf("%w: %q is not a requirement of service %s", store.ErrInvalidArgument, label, service.ID)
		}
		if strings.TrimSpace(ref) == "" {
			return nil, fmt.Errorf("%w: empty file reference for %q", store.ErrInvalidArgument, label)
		}
		if att == nil {
			att = make(map[string]string, len(attachments))
		}
		att[label] = ref
	}

	now := e.now().UTC().Truncate(time.Microsecond)
	r := models.Request{
		ID:             e.newID(),
		TrackingNumber: e.tracking(now),
		UserID:         p.ID,
		UserName:       p.Name,
		ServiceID:      service.ID,
		ServiceTitle:   service.Title,
		Status:         models.RequestStatusPending,
		Notes:          notes,
		Attachments:    att,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := e.requests.InsertRequest(ctx, r)
	if err != nil {
		e.metrics.StoreError("create_request", store.ErrorKind(err))
		return nil, err
	}
	e.metrics.RequestCreated()
	logging.Info("request created", map[string]interface{}{
		"request_id":      created.ID,
		"tracking_number": created.TrackingNumber,
		"service_id":      created.ServiceID,
		"user_id":         created.UserID,
		"attachments":     len(created.Attachments),
	})
	return created, nil
}

// StatusUpdate describes who changes a status and whether the graph is bypassed.
type StatusUpdate struct {
	ChangedBy string
	Reason    string
	// Force skips the transition graph for administrative correction.
	Force bool
}

// SetStatus moves a request to status. Setting the current status again is
// allowed and still bumps updated_at. Nothing is posted to the thread.
func (e *Engine) SetStatus(ctx context.Context, requestID string, status models.RequestStatus, u StatusUpdate) (*models.Request, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", store.ErrInvalidArgument, status)
	}
	var from models.RequestStatus
	decide := func(current models.RequestStatus) error {
		from = current
		if u.Force || current.CanTransitionTo(status) {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, status)
	}
	change := models.StatusChange{
		ID:        e.newID(),
		NewStatus: status,
		ChangedBy: u.ChangedBy,
		Reason:    u.Reason,
		Forced:    u.Force,
		CreatedAt: e.now(),
	}
	updated, err := e.requests.UpdateRequestStatus(ctx, requestID, decide, change)
	if err != nil {
		e.metrics.StoreError("set_status", store.ErrorKind(err))
		return nil, err
	}
	e.metrics.StatusChanged(string(from), string(status), u.Force)
	logging.Info("request status changed", map[string]interface{}{
		"request_id": requestID,
		"from":       from,
		"to":         status,
		"changed_by": u.ChangedBy,
		"forced":     u.Force,
	})
	return updated, nil
}

// BulkSetStatus applies SetStatus to each id, continuing past failures.
func (e *Engine) BulkSetStatus(ctx context.Context, requestIDs []string, status models.RequestStatus, u StatusUpdate) []models.BulkUpdateResult {
	results := make([]models.BulkUpdateResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		res := models.BulkUpdateResult{RequestID: id, Success: true}
		if _, err := e.SetStatus(ctx, id, status, u); err != nil {
			res.Success = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// GetRequest returns one request.
func (e *Engine) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	return e.requests.GetRequest(ctx, requestID)
}

// ListForUser returns the user's requests, newest first.
func (e *Engine) ListForUser(ctx context.Context, userID string) ([]models.Request, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidArgument)
	}
	return e.requests.ListRequests(ctx, userID)
}

// ListAll returns every request, newest first.
func (e *Engine) ListAll(ctx context.Context) ([]models.Request, error) {
	return e.requests.ListRequests(ctx, "")
}

// History returns the status changes of a request, oldest first.
func (e *Engine) History(ctx context.Context, requestID string) ([]models.StatusChange, error) {
	return e.requests.ListStatusHistory(ctx, requestID)
}
