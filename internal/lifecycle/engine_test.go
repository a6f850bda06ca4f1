package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
	"github.com/enjaz/request-service/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackingPattern = regexp.MustCompile(`^REQ-\d{4}-\d{1,4}$`)

var client = models.Principal{ID: "u1", Name: "Abdullah", Role: models.RoleClient}

var renewal = models.Service{
	ID:           "s3",
	AgencyID:     "ag2",
	Title:        "Iqama renewal",
	Price:        200,
	Requirements: []string{"Medical check", "Government fee receipt"},
}

// frozenClock returns the same instant on every call.
func frozenClock(at time.Time) func() time.Time { return func() time.Time { return at } }

// steppingClock advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	return NewEngine(s, opts...), s
}

func TestTrackingNumberFormat(t *testing.T) {
	at := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		tn := TrackingNumber(at)
		require.Regexp(t, trackingPattern, tn)
		assert.Contains(t, tn, "REQ-2025-")
	}
}

func TestCreateRequestStartsPending(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	e, _ := newEngine(t, WithClock(frozenClock(now)))

	r, err := e.CreateRequest(context.Background(), client, renewal, "urgent please", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, r.Status)
	assert.Regexp(t, trackingPattern, r.TrackingNumber)
	assert.True(t, r.CreatedAt.Equal(now))
	assert.True(t, r.UpdatedAt.Equal(now))
	assert.Equal(t, "Iqama renewal", r.ServiceTitle)
	assert.Equal(t, "Abdullah", r.UserName)
	assert.Equal(t, "urgent please", r.Notes)
	assert.Empty(t, r.Attachments)
}

func TestCreateRequestUsesTrackingGenerator(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	var seen time.Time
	e, _ := newEngine(t, WithClock(frozenClock(now)), WithTrackingNumbers(func(at time.Time) string {
		seen = at
		return "REQ-2025-42"
	}))

	r, err := e.CreateRequest(context.Background(), client, renewal, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "REQ-2025-42", r.TrackingNumber)
	assert.True(t, seen.Equal(now))
}

func TestCreateRequestIsNotIdempotent(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	a, err := e.CreateRequest(ctx, client, renewal, "", nil)
	require.NoError(t, err)
	b, err := e.CreateRequest(ctx, client, renewal, "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	all, err := e.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateRequestAttachments(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	r, err := e.CreateRequest(ctx, client, renewal, "", map[string]string{"Medical check": "requests/u1/abc/medical.pdf"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Medical check": "requests/u1/abc/medical.pdf"}, r.Attachments)

	_, err = e.CreateRequest(ctx, client, renewal, "", map[string]string{"Passport": "x"})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))

	_, err = e.CreateRequest(ctx, client, renewal, "", map[string]string{"Medical check": " "})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))

	_, err = e.CreateRequest(ctx, models.Principal{}, renewal, "", nil)
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))

	_, err = e.CreateRequest(ctx, client, models.Service{}, "", nil)
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
}

func TestListForUser(t *testing.T) {
	e, _ := newEngine(t, WithClock(steppingClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)))
	ctx := context.Background()

	empty, err := e.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	other := models.Principal{ID: "u2", Name: "Sara"}
	first, _ := e.CreateRequest(ctx, client, renewal, "", nil)
	_, _ = e.CreateRequest(ctx, other, renewal, "", nil)
	third, _ := e.CreateRequest(ctx, client, renewal, "", nil)

	mine, err := e.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, third.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)
	for _, r := range mine {
		assert.Equal(t, "u1", r.UserID)
	}
	assert.False(t, mine[0].CreatedAt.Before(mine[1].CreatedAt))

	_, err = e.ListForUser(ctx, "")
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
}

func TestSetStatusFollowsGraph(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	r, err := e.CreateRequest(ctx, client, renewal, "", nil)
	require.NoError(t, err)

	_, err = e.SetStatus(ctx, r.ID, models.RequestStatusCompleted, StatusUpdate{ChangedBy: "staff"})
	assert.True(t, errors.Is(err, store.ErrInvalidTransition), "PENDING cannot jump to COMPLETED")

	steps := []models.RequestStatus{
		models.RequestStatusActionRequired,
		models.RequestStatusProcessing,
		models.RequestStatusActionRequired,
		models.RequestStatusProcessing,
		models.RequestStatusCompleted,
	}
	for _, st := range steps {
		got, err := e.SetStatus(ctx, r.ID, st, StatusUpdate{ChangedBy: "staff"})
		require.NoError(t, err, "to %s", st)
		assert.Equal(t, st, got.Status)
	}

	_, err = e.SetStatus(ctx, r.ID, models.RequestStatusProcessing, StatusUpdate{ChangedBy: "staff"})
	assert.True(t, errors.Is(err, store.ErrInvalidTransition), "COMPLETED is terminal")

	forced, err := e.SetStatus(ctx, r.ID, models.RequestStatusProcessing, StatusUpdate{ChangedBy: "admin", Reason: "reopened", Force: true})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusProcessing, forced.Status)

	history, err := e.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, len(steps)+1)
	last := history[len(history)-1]
	assert.True(t, last.Forced)
	assert.Equal(t, "reopened", last.Reason)
	assert.Equal(t, models.RequestStatusCompleted, last.OldStatus)
}

func TestSetStatusRejectsUnknownStatusAndRequest(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	r, _ := e.CreateRequest(ctx, client, renewal, "", nil)

	_, err := e.SetStatus(ctx, r.ID, models.RequestStatus("ARCHIVED"), StatusUpdate{Force: true})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))

	_, err = e.SetStatus(ctx, "missing", models.RequestStatusProcessing, StatusUpdate{})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSetSameStatusBumpsUpdatedAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	e, _ := newEngine(t, WithClock(frozenClock(now)))
	ctx := context.Background()
	r, err := e.CreateRequest(ctx, client, renewal, "", nil)
	require.NoError(t, err)

	first, err := e.SetStatus(ctx, r.ID, models.RequestStatusProcessing, StatusUpdate{})
	require.NoError(t, err)
	second, err := e.SetStatus(ctx, r.ID, models.RequestStatusProcessing, StatusUpdate{})
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.UpdatedAt.After(r.UpdatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.True(t, second.CreatedAt.Equal(r.CreatedAt), "created_at is immutable")
}

func TestBulkSetStatusContinuesPastFailures(t *testing.T) {
	e, _ := newEngine(t, WithIDs(seqIDs("id-")))
	ctx := context.Background()
	a, _ := e.CreateRequest(ctx, client, renewal, "", nil)
	b, _ := e.CreateRequest(ctx, client, renewal, "", nil)

	results := e.BulkSetStatus(ctx, []string{a.ID, "missing", b.ID}, models.RequestStatusProcessing, StatusUpdate{ChangedBy: "staff"})
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].Success)

	got, err := e.GetRequest(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusProcessing, got.Status)
}

func TestFilterAndPage(t *testing.T) {
	reqs := []models.Request{
		{ID: "1", TrackingNumber: "REQ-2025-17", UserName: "Abdullah", Status: models.RequestStatusPending},
		{ID: "2", TrackingNumber: "REQ-2025-4410", UserName: "Sara", Status: models.RequestStatusCompleted},
		{ID: "3", TrackingNumber: "REQ-2024-9", UserName: "sara k", Status: models.RequestStatusPending},
	}

	assert.Len(t, Filter{}.Apply(reqs), 3)
	pending := Filter{Status: models.RequestStatusPending}.Apply(reqs)
	require.Len(t, pending, 2)
	assert.Equal(t, "1", pending[0].ID)

	bySara := Filter{Search: "SARA"}.Apply(reqs)
	require.Len(t, bySara, 2)
	byTracking := Filter{Search: "4410"}.Apply(reqs)
	require.Len(t, byTracking, 1)
	assert.Equal(t, "2", byTracking[0].ID)
	assert.Len(t, Filter{Status: models.RequestStatusPending, Search: "sara"}.Apply(reqs), 1)

	page, total := Page(reqs, 2, 2)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "3", page[0].ID)

	beyond, _ := Page(reqs, 5, 2)
	assert.Empty(t, beyond)

	huge, total := Page(reqs, 1<<62, 20)
	assert.Empty(t, huge)
	assert.Equal(t, 1, total)
	all, total := Page(reqs, 1, 1<<62)
	assert.Len(t, all, 3)
	assert.Equal(t, 1, total)
	none, total := Page(nil, 1, 20)
	assert.Empty(t, none)
	assert.Equal(t, 0, total)
}
