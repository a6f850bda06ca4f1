// Package stats computes dashboard counters over the current request set.
package stats

import (
	"context"

	"github.com/enjaz/request-service/internal/logging"
	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
)

// Aggregator recomputes Stats on every call. Nothing is cached.
type Aggregator struct {
	requests store.RequestStore
	catalog  store.CatalogStore
}

// NewAggregator creates an aggregator over the given stores.
func NewAggregator(requests store.RequestStore, catalog store.CatalogStore) *Aggregator {
	return &Aggregator{requests: requests, catalog: catalog}
}

// Compute folds every request joined with its service price.
func (a *Aggregator) Compute(ctx context.Context) (models.Stats, error) {
	reqs, err := a.requests.ListRequests(ctx, "")
	if err != nil {
		return models.Stats{}, err
	}
	services, err := a.catalog.ListServices(ctx, "")
	if err != nil {
		return models.Stats{}, err
	}
	prices := make(map[string]float64, len(services))
	for _, s := range services {
		prices[s.ID] = s.Price
	}
	return Fold(reqs, prices), nil
}

// Fold is the pure aggregate. A completed request whose service is missing
// from prices contributes 0 to revenue.
func Fold(reqs []models.Request, prices map[string]float64) models.Stats {
	st := models.Stats{ByStatus: make(map[models.RequestStatus]int, len(models.AllRequestStatuses))}
	for _, s := range models.AllRequestStatuses {
		st.ByStatus[s] = 0
	}
	orphaned := 0
	for _, r := range reqs {
		st.TotalRequests++
		st.ByStatus[r.Status]++
		switch r.Status {
		case models.RequestStatusPending:
			st.PendingRequests++
		case models.RequestStatusCompleted:
			st.CompletedRequests++
			price, ok := prices[r.ServiceID]
			if !ok {
				orphaned++
			}
			st.Revenue += price
		}
	}
	if orphaned > 0 {
		logging.Warn("completed requests reference missing services", map[string]interface{}{
			"count": orphaned,
		})
	}
	return st
}
