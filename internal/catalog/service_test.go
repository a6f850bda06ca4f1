package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/enjaz/request-service/internal/models"
	"github.com/enjaz/request-service/internal/store"
	"github.com/enjaz/request-service/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails catalog reads while down is set.
type flakyStore struct {
	*memory.Store
	down  bool
	reads int
}

func (f *flakyStore) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	f.reads++
	if f.down {
		return nil, store.ErrStoreUnavailable
	}
	return f.Store.ListAgencies(ctx)
}

func (f *flakyStore) ListServices(ctx context.Context, agencyID string) ([]models.Service, error) {
	f.reads++
	if f.down {
		return nil, store.ErrStoreUnavailable
	}
	return f.Store.ListServices(ctx, agencyID)
}

func newService(t *testing.T) (*Service, *flakyStore) {
	t.Helper()
	fs := &flakyStore{Store: memory.New()}
	return NewService(fs, NewMemoryCache(), time.Minute, nil), fs
}

func TestEmptyCatalogIsFreshAndEmpty(t *testing.T) {
	svc, _ := newService(t)
	l, err := svc.ListAgencies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, l.Items)
	assert.False(t, l.Stale)
}

func TestUnavailableWithoutSnapshotSurfacesError(t *testing.T) {
	svc, fs := newService(t)
	fs.down = true
	_, err := svc.ListAgencies(context.Background())
	assert.True(t, errors.Is(err, store.ErrStoreUnavailable))
}

func TestListingsAreCachedAndInvalidatedOnWrite(t *testing.T) {
	svc, fs := newService(t)
	ctx := context.Background()

	a, err := svc.CreateAgency(ctx, models.AgencyInput{Name: "Ministry of Commerce"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	l, err := svc.ListAgencies(ctx)
	require.NoError(t, err)
	require.Len(t, l.Items, 1)
	_, err = svc.ListAgencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fs.reads, "second read is served from cache")

	_, err = svc.CreateAgency(ctx, models.AgencyInput{Name: "Passports"})
	require.NoError(t, err)
	l, err = svc.ListAgencies(ctx)
	require.NoError(t, err)
	assert.Len(t, l.Items, 2)
	assert.Equal(t, 2, fs.reads)
}

func TestStaleSnapshotWhenStoreIsDown(t *testing.T) {
	svc, fs := newService(t)
	ctx := context.Background()

	a, err := svc.CreateAgency(ctx, models.AgencyInput{Name: "Ministry of Commerce"})
	require.NoError(t, err)
	_, err = svc.CreateService(ctx, models.ServiceInput{AgencyID: a.ID, Title: "CR issuance", Price: 300})
	require.NoError(t, err)

	fresh, err := svc.ListServices(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, fresh.Items, 1)
	assert.False(t, fresh.Stale)

	// a write drops the fresh entry but keeps the snapshot
	_, err = svc.UpdateAgency(ctx, a.ID, models.AgencyInput{Name: "MoC"})
	require.NoError(t, err)
	fs.down = true

	l, err := svc.ListServices(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, l.Stale)
	require.Len(t, l.Items, 1)
	assert.Equal(t, "CR issuance", l.Items[0].Title)

	_, err = svc.ListServices(ctx, "")
	assert.True(t, errors.Is(err, store.ErrStoreUnavailable), "no snapshot for the unfiltered listing")
}

func TestWriteValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateAgency(ctx, models.AgencyInput{Name: "  "})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))

	a, err := svc.CreateAgency(ctx, models.AgencyInput{Name: "Passports"})
	require.NoError(t, err)

	_, err = svc.CreateService(ctx, models.ServiceInput{AgencyID: a.ID, Title: "Exit visa", Price: -1})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
	_, err = svc.CreateService(ctx, models.ServiceInput{AgencyID: a.ID, Title: "Exit visa", Requirements: []string{"Passport", "Passport"}})
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
	_, err = svc.CreateService(ctx, models.ServiceInput{AgencyID: "missing", Title: "Exit visa"})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	created, err := svc.CreateService(ctx, models.ServiceInput{AgencyID: a.ID, Title: "Exit visa"})
	require.NoError(t, err)
	assert.NotNil(t, created.Requirements)

	_, err = svc.UpdateService(ctx, "missing", models.ServiceInput{AgencyID: a.ID, Title: "x"})
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(svc.DeleteService(ctx, "missing"), store.ErrNotFound))
	assert.True(t, errors.Is(svc.DeleteAgency(ctx, "missing"), store.ErrNotFound))
}

func TestDeleteAgencyDropsItsServicesFromListings(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Seed(ctx)
	require.NoError(t, err)

	l, err := svc.ListServices(ctx, "")
	require.NoError(t, err)
	require.Len(t, l.Items, len(SeedServices))

	require.NoError(t, svc.DeleteAgency(ctx, "ag1"))
	l, err = svc.ListServices(ctx, "")
	require.NoError(t, err)
	for _, s := range l.Items {
		assert.NotEqual(t, "ag1", s.AgencyID)
	}
	assert.Len(t, l.Items, 2)
}

func TestSeedIsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	seeded, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	seeded, err = svc.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	l, err := svc.ListAgencies(ctx)
	require.NoError(t, err)
	assert.Len(t, l.Items, len(SeedAgencies))
	for _, s := range SeedServices {
		got, err := svc.GetService(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.Price, got.Price)
	}
}

func TestUnknownAgencyListingsAreNotCached(t *testing.T) {
	cache := NewMemoryCache()
	fs := &flakyStore{Store: memory.New()}
	svc := NewService(fs, cache, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		l, err := svc.ListServices(ctx, fmt.Sprintf("junk-%d", i))
		require.NoError(t, err)
		assert.Empty(t, l.Items)
	}
	assert.Empty(t, cache.entries)

	_, err := svc.Seed(ctx)
	require.NoError(t, err)
	_, err = svc.ListServices(ctx, "ag1")
	require.NoError(t, err)
	_, err = svc.ListServices(ctx, "")
	require.NoError(t, err)
	_, err = svc.ListAgencies(ctx)
	require.NoError(t, err)
	assert.Len(t, cache.entries, 6, "fresh and snapshot for each non-empty listing")
	for key, e := range cache.entries {
		assert.False(t, e.expires.IsZero(), "%s has an expiry", key)
	}
}

func TestZeroTTLDisablesFreshCaching(t *testing.T) {
	cache := NewMemoryCache()
	fs := &flakyStore{Store: memory.New()}
	svc := NewService(fs, cache, 0, nil)
	ctx := context.Background()

	_, err := svc.CreateAgency(ctx, models.AgencyInput{Name: "Passports"})
	require.NoError(t, err)
	_, err = svc.ListAgencies(ctx)
	require.NoError(t, err)
	_, err = svc.ListAgencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fs.reads, "every read goes to the store")

	_, err = cache.Get(ctx, freshPrefix+"agencies")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	// the snapshot is still kept for outages
	fs.down = true
	l, err := svc.ListAgencies(ctx)
	require.NoError(t, err)
	assert.True(t, l.Stale)
	assert.Len(t, l.Items, 1)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "catalog:fresh:a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "catalog:lkg:a", []byte("2"), 0))

	b, err := c.Get(ctx, "catalog:fresh:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), b)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "catalog:fresh:a")
	assert.True(t, errors.Is(err, ErrCacheMiss))
	_, err = c.Get(ctx, "catalog:lkg:a")
	assert.NoError(t, err)

	require.NoError(t, c.DeletePrefix(ctx, "catalog:lkg:"))
	_, err = c.Get(ctx, "catalog:lkg:a")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := ConnectRedis(mr.Addr(), "", 0)
	require.NoError(t, err)
	c := NewRedisCache(rdb)
	defer c.Close()
	ctx := context.Background()

	_, err = c.Get(ctx, "catalog:fresh:missing")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	// more keys than one SCAN batch
	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("catalog:fresh:services:ag%d", i), []byte("x"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, "catalog:lkg:agencies", []byte("y"), SnapshotTTL))
	b, err := c.Get(ctx, "catalog:fresh:services:ag7")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), b)
	assert.Equal(t, time.Minute, mr.TTL("catalog:fresh:services:ag7"))

	require.NoError(t, c.DeletePrefix(ctx, freshPrefix))
	assert.Equal(t, []string{"catalog:lkg:agencies"}, mr.Keys())

	mr.FastForward(2 * time.Minute)
	b, err = c.Get(ctx, "catalog:lkg:agencies")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), b)
}

func TestServiceOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := ConnectRedis(mr.Addr(), "", 0)
	require.NoError(t, err)
	fs := &flakyStore{Store: memory.New()}
	svc := NewService(fs, NewRedisCache(rdb), time.Minute, nil)
	ctx := context.Background()

	_, err = svc.Seed(ctx)
	require.NoError(t, err)
	_, err = svc.ListServices(ctx, "ag1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(freshPrefix+"services:ag1"))
	assert.True(t, mr.Exists(snapshotPrefix+"services:ag1"))

	_, err = svc.CreateAgency(ctx, models.AgencyInput{Name: "Passports"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(freshPrefix+"services:ag1"))
	assert.True(t, mr.Exists(snapshotPrefix+"services:ag1"))
}
