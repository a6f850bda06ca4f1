// Package memory is an in-process Store used by tests, demo mode, and as the
// working state of the SQLite backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
)

// Snapshot is the full state of a Store. Slices keep insertion order.
type Snapshot struct {
	Agencies      []models.Agency       `json:"agencies"`
	Services      []models.Service      `json:"services"`
	Requests      []models.Request      `json:"requests"`
	Messages      []models.Message      `json:"messages"`
	StatusChanges []models.StatusChange `json:"status_changes"`
}

// PersistFunc is called with the new state after every successful write while
// the write lock is held. A returned error rolls the write back.
type PersistFunc func(Snapshot) error

// Store keeps every table in memory behind one RWMutex.
type Store struct {
	mu      sync.RWMutex
	state   Snapshot
	persist PersistFunc
	closed  bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// NewWithSnapshot returns a store loaded from snap that calls persist after
// every write.
func NewWithSnapshot(snap Snapshot, persist PersistFunc) *Store {
	return &Store{state: cloneSnapshot(snap), persist: persist}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.state)
}

// Ping reports whether the store is open.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreUnavailable
	}
	return ctx.Err()
}

// Close marks the store closed; later calls fail with ErrStoreUnavailable.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Store) read(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreUnavailable
	}
	return fn()
}

// write runs fn under the write lock. When a persist hook is set the state is
// restored if either fn or the hook fails.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreUnavailable
	}
	var before Snapshot
	if s.persist != nil {
		before = cloneSnapshot(s.state)
	}
	if err := fn(); err != nil {
		if s.persist != nil {
			s.state = before
		}
		return err
	}
	if s.persist != nil {
		if err := s.persist(cloneSnapshot(s.state)); err != nil {
			s.state = before
			return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Catalog

func (s *Store) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	var out []models.Agency
	err := s.read(ctx, func() error {
		out = make([]models.Agency, len(s.state.Agencies))
		copy(out, s.state.Agencies)
		return nil
	})
	return out, err
}

func (s *Store) GetAgency(ctx context.Context, id string) (*models.Agency, error) {
	var out *models.Agency
	err := s.read(ctx, func() error {
		i := s.agencyIndex(id)
		if i < 0 {
			return fmt.Errorf("agency %s: %w", id, store.ErrNotFound)
		}
		a := s.state.Agencies[i]
		out = &a
		return nil
	})
	return out, err
}

func (s *Store) CreateAgency(ctx context.Context, a models.Agency) (*models.Agency, error) {
	if err := store.ValidateAgency(a); err != nil {
		return nil, err
	}
	err := s.write(ctx, func() error {
		if s.agencyIndex(a.ID) >= 0 {
			return fmt.Errorf("%w: agency %s already exists", store.ErrInvalidArgument, a.ID)
		}
		s.state.Agencies = append(s.state.Agencies, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) UpdateAgency(ctx context.Context, a models.Agency) (*models.Agency, error) {
	if err := store.ValidateAgency(a); err != nil {
		return nil, err
	}
	err := s.write(ctx, func() error {
		i := s.agencyIndex(a.ID)
		if i < 0 {
			return fmt.Errorf("agency %s: %w", a.ID, store.ErrNotFound)
		}
		s.state.Agencies[i] = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) DeleteAgency(ctx context.Context, id string) error {
	return s.write(ctx, func() error {
		i := s.agencyIndex(id)
		if i < 0 {
			return fmt.Errorf("agency %s: %w", id, store.ErrNotFound)
		}
		s.state.Agencies = append(s.state.Agencies[:i:i], s.state.Agencies[i+1:]...)
		kept := s.state.Services[:0:0]
		for _, svc := range s.state.Services {
			if svc.AgencyID != id {
				kept = append(kept, svc)
			}
		}
		s.state.Services = kept
		return nil
	})
}

func (s *Store) ListServices(ctx context.Context, agencyID string) ([]models.Service, error) {
	out := make([]models.Service, 0)
	err := s.read(ctx, func() error {
		for _, svc := range s.state.Services {
			if agencyID == "" || svc.AgencyID == agencyID {
				out = append(out, cloneService(svc))
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) GetService(ctx context.Context, id string) (*models.Service, error) {
	var out *models.Service
	err := s.read(ctx, func() error {
		i := s.serviceIndex(id)
		if i < 0 {
			return fmt.Errorf("service %s: %w", id, store.ErrNotFound)
		}
		svc := cloneService(s.state.Services[i])
		out = &svc
		return nil
	})
	return out, err
}

func (s *Store) CreateService(ctx context.Context, svc models.Service) (*models.Service, error) {
	if err := store.ValidateService(svc); err != nil {
		return nil, err
	}
	svc = cloneService(svc)
	err := s.write(ctx, func() error {
		if s.agencyIndex(svc.AgencyID) < 0 {
			return fmt.Errorf("agency %s: %w", svc.AgencyID, store.ErrNotFound)
		}
		if s.serviceIndex(svc.ID) >= 0 {
			return fmt.Errorf("%w: service %s already exists", store.ErrInvalidArgument, svc.ID)
		}
		s.state.Services = append(s.state.Services, svc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := cloneService(svc)
	return &out, nil
}

func (s *Store) UpdateService(ctx context.Context, svc models.Service) (*models.Service, error) {
	if err := store.ValidateService(svc); err != nil {
		return nil, err
	}
	svc = cloneService(svc)
	err := s.write(ctx, func() error {
		i := s.serviceIndex(svc.ID)
		if i < 0 {
			return fmt.Errorf("service %s: %w", svc.ID, store.ErrNotFound)
		}
		if s.agencyIndex(svc.AgencyID) < 0 {
			return fmt.Errorf("agency %s: %w", svc.AgencyID, store.ErrNotFound)
		}
		s.state.Services[i] = svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := cloneService(svc)
	return &out, nil
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.write(ctx, func() error {
		i := s.serviceIndex(id)
		if i < 0 {
			return fmt.Errorf("service %s: %w", id, store.ErrNotFound)
		}
		s.state.Services = append(s.state.Services[:i:i], s.state.Services[i+1:]...)
		return nil
	})
}

// Requests

func (s *Store) InsertRequest(ctx context.Context, r models.Request) (*models.Request, error) {
	r = cloneRequest(r)
	err := s.write(ctx, func() error {
		if s.requestIndex(r.ID) >= 0 {
			return fmt.Errorf("%w: request %s already exists", store.ErrInvalidArgument, r.ID)
		}
		s.state.Requests = append(s.state.Requests, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := cloneRequest(r)
	return &out, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	var out *models.Request
	err := s.read(ctx, func() error {
		i := s.requestIndex(id)
		if i < 0 {
			return fmt.Errorf("request %s: %w", id, store.ErrNotFound)
		}
		r := cloneRequest(s.state.Requests[i])
		out = &r
		return nil
	})
	return out, err
}

func (s *Store) ListRequests(ctx context.Context, userID string) ([]models.Request, error) {
	out := make([]models.Request, 0)
	err := s.read(ctx, func() error {
		for _, r := range s.state.Requests {
			if userID == "" || r.UserID == userID {
				out = append(out, cloneRequest(r))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// newest insertion first, so equal created_at values keep submission order reversed
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, requestID string, decide store.StatusDecider, change models.StatusChange) (*models.Request, error) {
	var out models.Request
	err := s.write(ctx, func() error {
		i := s.requestIndex(requestID)
		if i < 0 {
			return fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
		}
		r := &s.state.Requests[i]
		if decide != nil {
			if err := decide(r.Status); err != nil {
				return err
			}
		}
		change.RequestID = r.ID
		change.OldStatus = r.Status
		r.Status = change.NewStatus
		r.UpdatedAt = store.NextUpdatedAt(r.UpdatedAt, change.CreatedAt)
		change.CreatedAt = r.UpdatedAt
		s.state.StatusChanges = append(s.state.StatusChanges, change)
		out = cloneRequest(*r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListStatusHistory(ctx context.Context, requestID string) ([]models.StatusChange, error) {
	out := make([]models.StatusChange, 0)
	err := s.read(ctx, func() error {
		if s.requestIndex(requestID) < 0 {
			return fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
		}
		for _, c := range s.state.StatusChanges {
			if c.RequestID == requestID {
				out = append(out, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Messages

func (s *Store) InsertMessage(ctx context.Context, m models.Message) (*models.Message, error) {
	if err := store.ValidateMessageContent(m.Content); err != nil {
		return nil, err
	}
	err := s.write(ctx, func() error {
		if s.requestIndex(m.RequestID) < 0 {
			return fmt.Errorf("request %s: %w", m.RequestID, store.ErrNotFound)
		}
		// keep the thread ordered even if the caller's clock stepped back
		if last := s.lastMessageAt(m.RequestID); last != nil && m.CreatedAt.Before(*last) {
			m.CreatedAt = *last
		}
		s.state.Messages = append(s.state.Messages, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMessages(ctx context.Context, requestID string) ([]models.Message, error) {
	out := make([]models.Message, 0)
	err := s.read(ctx, func() error {
		if s.requestIndex(requestID) < 0 {
			return fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
		}
		for _, m := range s.state.Messages {
			if m.RequestID == requestID {
				out = append(out, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// helpers; callers hold the lock

func (s *Store) agencyIndex(id string) int {
	for i, a := range s.state.Agencies {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) serviceIndex(id string) int {
	for i, svc := range s.state.Services {
		if svc.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) requestIndex(id string) int {
	for i, r := range s.state.Requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) lastMessageAt(requestID string) *time.Time {
	var last *time.Time
	for i := range s.state.Messages {
		if s.state.Messages[i].RequestID == requestID {
			last = &s.state.Messages[i].CreatedAt
		}
	}
	return last
}
