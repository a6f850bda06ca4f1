// Package catalog serves agencies and services to callers, caching listings
// and keeping a last-known-good snapshot for when the store is unreachable.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/enjaz/request-service/internal/metrics"
	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
	"github.com/google/uuid"
)

const (
	freshPrefix    = "catalog:fresh:"
	snapshotPrefix = "catalog:lkg:"

	// SnapshotTTL bounds how long a last-known-good listing is kept.
	SnapshotTTL = 24 * time.Hour
)

// Listing is a catalog read result. Stale is set when Items came from the
// last-known-good snapshot because the store could not be reached.
type Listing[T any] struct {
	Items []T
	Stale bool
}

// Service wraps a CatalogStore with validation and caching.
type Service struct {
	store   store.CatalogStore
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	newID   func() string
}

// NewService creates a catalog service. A nil cache gets an in-process one.
// A ttl of zero or less disables fresh caching; snapshots are still kept.
func NewService(s store.CatalogStore, cache Cache, ttl time.Duration, m *metrics.Metrics) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{store: s, cache: cache, ttl: ttl, metrics: m, newID: uuid.NewString}
}

// ListAgencies returns every agency in insertion order.
func (s *Service) ListAgencies(ctx context.Context) (Listing[models.Agency], error) {
	return cachedList(ctx, s, "agencies", true, func() ([]models.Agency, error) {
		return s.store.ListAgencies(ctx)
	})
}

// ListServices returns the services of one agency, or all of them when
// agencyID is empty. Empty per-agency listings are not cached, so unknown
// agency ids never create cache entries.
func (s *Service) ListServices(ctx context.Context, agencyID string) (Listing[models.Service], error) {
	key := "services:all"
	if agencyID != "" {
		key = "services:" + agencyID
	}
	return cachedList(ctx, s, key, agencyID == "", func() ([]models.Service, error) {
		return s.store.ListServices(ctx, agencyID)
	})
}

// GetService always reads the store; request submission must not see a stale price.
func (s *Service) GetService(ctx context.Context, id string) (*models.Service, error) {
	return s.store.GetService(ctx, id)
}

func cachedList[T any](ctx context.Context, s *Service, key string, cacheEmpty bool, load func() ([]T, error)) (Listing[T], error) {
	if s.ttl > 0 {
		if b, err := s.cache.Get(ctx, freshPrefix+key); err == nil {
			var items []T
			if err := json.Unmarshal(b, &items); err == nil {
				s.metrics.CatalogCache("hit")
				return Listing[T]{Items: items}, nil
			}
		} else if !errors.Is(err, ErrCacheMiss) {
			log.Printf("[CATALOG] cache get %s: %v", key, err)
		}
	}

	items, err := load()
	if err != nil {
		if !errors.Is(err, store.ErrStoreUnavailable) {
			return Listing[T]{}, err
		}
		if b, cerr := s.cache.Get(ctx, snapshotPrefix+key); cerr == nil {
			var snap []T
			if json.Unmarshal(b, &snap) == nil {
				s.metrics.CatalogCache("stale")
				log.Printf("[CATALOG] serving stale %s: %v", key, err)
				return Listing[T]{Items: snap, Stale: true}, nil
			}
		}
		s.metrics.CatalogCache("error")
		return Listing[T]{}, err
	}
	s.metrics.CatalogCache("miss")
	if len(items) == 0 && !cacheEmpty {
		return Listing[T]{Items: items}, nil
	}

	if b, err := json.Marshal(items); err == nil {
		if s.ttl > 0 {
			if err := s.cache.Set(ctx, freshPrefix+key, b, s.ttl); err != nil {
				log.Printf("[CATALOG] cache set %s: %v", key, err)
			}
		}
		if err := s.cache.Set(ctx, snapshotPrefix+key, b, SnapshotTTL); err != nil {
			log.Printf("[CATALOG] snapshot set %s: %v", key, err)
		}
	}
	return Listing[T]{Items: items}, nil
}

// invalidate drops fresh listings after a write. Snapshots stay until the next
// successful read replaces them.
func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, freshPrefix); err != nil {
		log.Printf("[CATALOG] invalidate: %v", err)
	}
}

// CreateAgency validates and stores a new agency.
func (s *Service) CreateAgency(ctx context.Context, in models.AgencyInput) (*models.Agency, error) {
	a := models.Agency{ID: s.newID(), Name: in.Name, Description: in.Description, Icon: in.Icon, Color: in.Color}
	if err := store.ValidateAgency(a); err != nil {
		return nil, err
	}
	created, err := s.store.CreateAgency(ctx, a)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return created, nil
}

// UpdateAgency replaces the editable fields of agency id.
func (s *Service) UpdateAgency(ctx context.Context, id string, in models.AgencyInput) (*models.Agency, error) {
	a := models.Agency{ID: id, Name: in.Name, Description: in.Description, Icon: in.Icon, Color: in.Color}
	if err := store.ValidateAgency(a); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateAgency(ctx, a)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteAgency removes the agency and its services.
func (s *Service) DeleteAgency(ctx context.Context, id string) error {
	if err := s.store.DeleteAgency(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	log.Printf("[CATALOG] Deleted agency %s and its services", id)
	return nil
}

// CreateService validates and stores a new service under an existing agency.
func (s *Service) CreateService(ctx context.Context, in models.ServiceInput) (*models.Service, error) {
	svc := serviceFromInput(s.newID(), in)
	if err := store.ValidateService(svc); err != nil {
		return nil, err
	}
	created, err := s.store.CreateService(ctx, svc)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return created, nil
}

// UpdateService replaces the editable fields of service id.
func (s *Service) UpdateService(ctx context.Context, id string, in models.ServiceInput) (*models.Service, error) {
	svc := serviceFromInput(id, in)
	if err := store.ValidateService(svc); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateService(ctx, svc)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteService removes one service. Requests that reference it keep their title.
func (s *Service) DeleteService(ctx context.Context, id string) error {
	if err := s.store.DeleteService(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func serviceFromInput(id string, in models.ServiceInput) models.Service {
	reqs := in.Requirements
	if reqs == nil {
		reqs = []string{}
	}
	return models.Service{
		ID:           id,
		AgencyID:     in.AgencyID,
		Title:        in.Title,
		Description:  in.Description,
		Price:        in.Price,
		Requirements: reqs,
	}
}

// Seed loads SeedAgencies and SeedServices when the catalog has no agencies.
// It reports whether anything was written.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	existing, err := s.store.ListAgencies(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	for _, a := range SeedAgencies {
		if _, err := s.store.CreateAgency(ctx, a); err != nil {
			return false, fmt.Errorf("seed agency %s: %w", a.ID, err)
		}
	}
	for _, svc := range SeedServices {
		if _, err := s.store.CreateService(ctx, svc); err != nil {
			return false, fmt.Errorf("seed service %s: %w", svc.ID, err)
		}
	}
	s.invalidate(ctx)
	log.Printf("[CATALOG] Seeded %d agencies and %d services", len(SeedAgencies), len(SeedServices))
	return true, nil
}
