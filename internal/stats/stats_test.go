package stats

import (
	"context"
	"testing"
	"time"

	"github.com/enjaz/request-service/internal/lifecycle"
	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	reqs := []models.Request{
		{ID: "1", ServiceID: "s1", Status: models.RequestStatusCompleted},
		{ID: "2", ServiceID: "s2", Status: models.RequestStatusCompleted},
		{ID: "3", ServiceID: "s1", Status: models.RequestStatusPending},
		{ID: "4", ServiceID: "s1", Status: models.RequestStatusProcessing},
		{ID: "5", ServiceID: "s1", Status: models.RequestStatusRejected},
		{ID: "6", ServiceID: "gone", Status: models.RequestStatusCompleted},
	}
	prices := map[string]float64{"s1": 1500, "s2": 200}

	st := Fold(reqs, prices)
	assert.Equal(t, 6, st.TotalRequests)
	assert.Equal(t, 1, st.PendingRequests)
	assert.Equal(t, 3, st.CompletedRequests)
	assert.Equal(t, 1700.0, st.Revenue)
	assert.Equal(t, 3, st.ByStatus[models.RequestStatusCompleted])
	assert.Equal(t, 0, st.ByStatus[models.RequestStatusActionRequired])
	assert.Len(t, st.ByStatus, 5)
}

func TestFoldEmpty(t *testing.T) {
	st := Fold(nil, nil)
	assert.Zero(t, st.TotalRequests)
	assert.Zero(t, st.Revenue)
	assert.Len(t, st.ByStatus, 5)
}

func TestRevenueAfterAgencyDelete(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	agg := NewAggregator(s, s)
	engine := lifecycle.NewEngine(s, lifecycle.WithClock(func() time.Time {
		return time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	}))

	_, err := s.CreateAgency(ctx, models.Agency{ID: "A1", Name: "Ministry of Commerce"})
	require.NoError(t, err)
	svc, err := s.CreateService(ctx, models.Service{ID: "S1", AgencyID: "A1", Title: "CR issuance", Price: 300})
	require.NoError(t, err)

	r1, err := engine.CreateRequest(ctx, models.Principal{ID: "u1", Name: "Abdullah"}, *svc, "", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, r1.Status)

	st, err := agg.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.Revenue)
	assert.Equal(t, 1, st.PendingRequests)

	_, err = engine.SetStatus(ctx, r1.ID, models.RequestStatusCompleted, lifecycle.StatusUpdate{Force: true})
	require.NoError(t, err)
	st, err = agg.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300.0, st.Revenue)

	require.NoError(t, s.DeleteAgency(ctx, "A1"))
	services, err := s.ListServices(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, services)

	got, err := engine.GetRequest(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, "CR issuance", got.ServiceTitle)

	st, err = agg.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.Revenue)
	assert.Equal(t, 1, st.CompletedRequests)

	all, err := engine.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(all), st.TotalRequests)
}
