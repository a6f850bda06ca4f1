// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Run exercises the full store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CatalogCRUD", func(t *testing.T) { testCatalogCRUD(t, newStore(t)) })
	t.Run("CatalogMissingIDs", func(t *testing.T) { testCatalogMissingIDs(t, newStore(t)) })
	t.Run("DeleteAgencyCascades", func(t *testing.T) { testDeleteAgencyCascades(t, newStore(t)) })
	t.Run("RequestsByUser", func(t *testing.T) { testRequestsByUser(t, newStore(t)) })
	t.Run("UpdateRequestStatus", func(t *testing.T) { testUpdateRequestStatus(t, newStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore(t)) })
}

func mustAgency(t *testing.T, s store.Store, id string) models.Agency {
	t.Helper()
	a, err := s.CreateAgency(context.Background(), models.Agency{ID: id, Name: "Agency " + id, Icon: "Briefcase", Color: "bg-blue-500"})
	require.NoError(t, err)
	return *a
}

func mustService(t *testing.T, s store.Store, id, agencyID string, price float64) models.Service {
	t.Helper()
	svc, err := s.CreateService(context.Background(), models.Service{
		ID:           id,
		AgencyID:     agencyID,
		Title:        "Service " + id,
		Price:        price,
		Requirements: []string{"ID copy", "Lease"},
	})
	require.NoError(t, err)
	return *svc
}

func mustRequest(t *testing.T, s store.Store, id, userID, serviceID string, createdAt time.Time) models.Request {
	t.Helper()
	r, err := s.InsertRequest(context.Background(), models.Request{
		ID:             id,
		TrackingNumber: fmt.Sprintf("REQ-%d-%d", createdAt.Year(), len(id)),
		UserID:         userID,
		UserName:       "user " + userID,
		ServiceID:      serviceID,
		ServiceTitle:   "Service " + serviceID,
		Status:         models.RequestStatusPending,
		Attachments:    map[string]string{"ID copy": "requests/" + userID + "/id.pdf"},
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	})
	require.NoError(t, err)
	return *r
}

func testCatalogCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()

	agencies, err := s.ListAgencies(ctx)
	require.NoError(t, err)
	assert.Empty(t, agencies)

	mustAgency(t, s, "ag-b")
	mustAgency(t, s, "ag-a")
	agencies, err = s.ListAgencies(ctx)
	require.NoError(t, err)
	require.Len(t, agencies, 2)
	assert.Equal(t, "ag-b", agencies[0].ID, "insertion order")
	assert.Equal(t, "ag-a", agencies[1].ID)

	updated, err := s.UpdateAgency(ctx, models.Agency{ID: "ag-a", Name: "Renamed", Color: "bg-green-600"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	got, err := s.GetAgency(ctx, "ag-a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	mustService(t, s, "s1", "ag-a", 300)
	mustService(t, s, "s2", "ag-b", 1500)
	mustService(t, s, "s3", "ag-a", 0)

	all, err := s.ListServices(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"s1", "s2", "s3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	onlyA, err := s.ListServices(ctx, "ag-a")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, []string{"ID copy", "Lease"}, onlyA[0].Requirements)

	svc, err := s.UpdateService(ctx, models.Service{ID: "s1", AgencyID: "ag-b", Title: "Moved", Price: 450, Requirements: []string{"Permit"}})
	require.NoError(t, err)
	assert.Equal(t, 450.0, svc.Price)
	got2, err := s.GetService(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "ag-b", got2.AgencyID)
	assert.Equal(t, []string{"Permit"}, got2.Requirements)

	require.NoError(t, s.DeleteService(ctx, "s2"))
	_, err = s.GetService(ctx, "s2")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = s.CreateService(ctx, models.Service{ID: "bad", AgencyID: "ag-a", Title: "Bad", Price: -1})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
	_, err = s.CreateService(ctx, models.Service{ID: "dup", AgencyID: "ag-a", Title: "Dup", Requirements: []string{"x", "x"}})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
	_, err = s.CreateAgency(ctx, models.Agency{ID: "blank", Name: "  "})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
}

func testCatalogMissingIDs(t *testing.T, s store.Store) {
	ctx := context.Background()

	assert.True(t, errors.Is(s.DeleteAgency(ctx, "nope"), store.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteService(ctx, "nope"), store.ErrNotFound))
	_, err := s.GetAgency(ctx, "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, err = s.UpdateAgency(ctx, models.Agency{ID: "nope", Name: "x"})
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, err = s.UpdateService(ctx, models.Service{ID: "nope", AgencyID: "x", Title: "x"})
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, err = s.CreateService(ctx, models.Service{ID: "s", AgencyID: "missing", Title: "x"})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testDeleteAgencyCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustAgency(t, s, "a1")
	mustAgency(t, s, "a2")
	mustService(t, s, "s1", "a1", 300)
	mustService(t, s, "s2", "a1", 200)
	mustService(t, s, "s3", "a2", 100)
	mustRequest(t, s, "r1", "u1", "s1", base)

	require.NoError(t, s.DeleteAgency(ctx, "a1"))

	services, err := s.ListServices(ctx, "")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "s3", services[0].ID)

	r, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "s1", r.ServiceID)
	assert.Equal(t, "Service s1", r.ServiceTitle)
}

func testRequestsByUser(t *testing.T, s store.Store) {
	ctx := context.Background()

	none, err := s.ListRequests(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	mustAgency(t, s, "a1")
	mustService(t, s, "s1", "a1", 300)
	mustRequest(t, s, "r1", "u1", "s1", base)
	mustRequest(t, s, "r2", "u2", "s1", base.Add(time.Minute))
	mustRequest(t, s, "r3", "u1", "s1", base.Add(2*time.Minute))

	mine, err := s.ListRequests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "r3", mine[0].ID)
	assert.Equal(t, "r1", mine[1].ID)
	assert.Equal(t, "requests/u1/id.pdf", mine[1].Attachments["ID copy"])

	all, err := s.ListRequests(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	got, err := s.GetRequest(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, got.Status)
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

	_, err = s.GetRequest(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testUpdateRequestStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustAgency(t, s, "a1")
	mustService(t, s, "s1", "a1", 300)
	r := mustRequest(t, s, "r1", "u1", "s1", base)

	change := models.StatusChange{ID: "c1", NewStatus: models.RequestStatusProcessing, ChangedBy: "staff-1", CreatedAt: base}
	updated, err := s.UpdateRequestStatus(ctx, "r1", nil, change)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusProcessing, updated.Status)
	assert.True(t, updated.UpdatedAt.After(r.UpdatedAt), "updated_at must move forward even with a stale clock")

	again, err := s.UpdateRequestStatus(ctx, "r1", nil, models.StatusChange{ID: "c2", NewStatus: models.RequestStatusProcessing, ChangedBy: "staff-1", CreatedAt: base})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusProcessing, again.Status)
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))

	refused := errors.New("refused")
	_, err = s.UpdateRequestStatus(ctx, "r1", func(current models.RequestStatus) error {
		assert.Equal(t, models.RequestStatusProcessing, current)
		return refused
	}, models.StatusChange{ID: "c3", NewStatus: models.RequestStatusCompleted, CreatedAt: base})
	assert.True(t, errors.Is(err, refused))

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusProcessing, got.Status, "refused change must not be written")

	history, err := s.ListStatusHistory(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RequestStatusPending, history[0].OldStatus)
	assert.Equal(t, models.RequestStatusProcessing, history[0].NewStatus)
	assert.Equal(t, "staff-1", history[0].ChangedBy)
	assert.Equal(t, models.RequestStatusProcessing, history[1].OldStatus)

	_, err = s.UpdateRequestStatus(ctx, "missing", nil, models.StatusChange{ID: "c4", NewStatus: models.RequestStatusCompleted, CreatedAt: base})
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, err = s.ListStatusHistory(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testMessages(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustAgency(t, s, "a1")
	mustService(t, s, "s1", "a1", 300)
	mustRequest(t, s, "r1", "u1", "s1", base)

	_, err := s.InsertMessage(ctx, models.Message{ID: "m0", RequestID: "missing", SenderID: "u1", Content: "hi", CreatedAt: base})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = s.InsertMessage(ctx, models.Message{ID: "m0", RequestID: "r1", SenderID: "u1", Content: "   ", CreatedAt: base})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))

	_, err = s.InsertMessage(ctx, models.Message{ID: "m1", RequestID: "r1", SenderID: "u1", SenderName: "Client", Content: "hello", CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, models.Message{ID: "m2", RequestID: "r1", SenderID: "a1", SenderName: "Support", Content: "got it", IsAdmin: true, CreatedAt: base.Add(2 * time.Second)})
	require.NoError(t, err)

	thread, err := s.ListMessages(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "hello", thread[0].Content)
	assert.False(t, thread[0].IsAdmin)
	assert.Equal(t, "Client", thread[0].SenderName)
	assert.Equal(t, "got it", thread[1].Content)
	assert.True(t, thread[1].IsAdmin)
	assert.False(t, thread[1].CreatedAt.Before(thread[0].CreatedAt))

	_, err = s.ListMessages(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
