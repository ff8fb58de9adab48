// Package storetest holds the behaviour every store.Store implementation
// must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/peek/internal/store"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) store.Store

// Run exercises a [store.Store] implementation.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAssignsID", testInsertAssignsID},
		{"InsertKeepsID", testInsertKeepsID},
		{"InsertDuplicateURL", testInsertDuplicateURL},
		{"GetNotFound", testGetNotFound},
		{"GetByURL", testGetByURL},
		{"ListOrderedByURL", testList},
		{"UpdateConfigLeavesState", testUpdateConfig},
		{"UpdateConfigNotFound", testUpdateConfigNotFound},
		{"UpdateStateWritesOnlyState", testUpdateStateOnlyState},
		{"UpdateStateCallbackError", testUpdateStateCallbackError},
		{"UpdateStateNotFound", testUpdateStateNotFound},
		{"UpdateStateConcurrent", testUpdateStateConcurrent},
		{"DeleteStale", testDeleteStale},
		{"EnsureURLIndexIdempotent", testEnsureURLIndex},
		{"TimesRoundTrip", testTimesRoundTrip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer func() { _ = s.Close() }()
			tt.fn(t, s)
		})
	}
}

var base = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func record(url string) store.CheckRecord {
	return store.CheckRecord{
		URL:                url,
		IntervalSeconds:    60,
		SearchPattern:      "*",
		LastState:          200,
		NextCheckAt:        base,
		ConfigUpdatedAt:    base,
		NextNotificationAt: base,
	}
}

func testInsertAssignsID(t *testing.T, s store.Store) {
	ctx := context.Background()
	got, err := s.Insert(ctx, record("https://a.example"))
	require.NoError(t, err)
	require.NotEmpty(t, got.ID)

	fetched, err := s.Get(ctx, got.ID)
	require.NoError(t, err)
	require.Equal(t, "https://a.example", fetched.URL)
	require.Equal(t, 60, fetched.IntervalSeconds)
}

func testInsertKeepsID(t *testing.T, s store.Store) {
	rec := record("https://a.example")
	rec.ID = "fixed-id"
	got, err := s.Insert(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "fixed-id", got.ID)
}

func testInsertDuplicateURL(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.Insert(ctx, record("https://a.example"))
	require.NoError(t, err)

	_, err = s.Insert(ctx, record("https://a.example"))
	require.ErrorIs(t, err, store.ErrDuplicateURL)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func testGetNotFound(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetByURL(context.Background(), "https://missing.example")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testGetByURL(t *testing.T, s store.Store) {
	ctx := context.Background()
	inserted, err := s.Insert(ctx, record("https://a.example"))
	require.NoError(t, err)

	got, err := s.GetByURL(ctx, "https://a.example")
	require.NoError(t, err)
	require.Equal(t, inserted.ID, got.ID)
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, u := range []string{"https://c.example", "https://a.example", "https://b.example"} {
		_, err := s.Insert(ctx, record(u))
		require.NoError(t, err)
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "https://a.example", all[0].URL)
	require.Equal(t, "https://c.example", all[2].URL)
}

func testUpdateConfig(t *testing.T, s store.Store) {
	ctx := context.Background()
	rec := record("https://a.example")
	rec.LastState = -503
	rec.Message = "boom"
	inserted, err := s.Insert(ctx, rec)
	require.NoError(t, err)

	at := base.Add(time.Hour)
	require.NoError(t, s.UpdateConfig(ctx, inserted.ID, 300, "Welcome", at))

	got, err := s.Get(ctx, inserted.ID)
	require.NoError(t, err)
	require.Equal(t, 300, got.IntervalSeconds)
	require.Equal(t, "Welcome", got.SearchPattern)
	require.True(t, got.ConfigUpdatedAt.Equal(at))
	require.EqualValues(t, -503, got.LastState)
	require.Equal(t, "boom", got.Message)
	require.True(t, got.NextCheckAt.Equal(base))
}

func testUpdateConfigNotFound(t *testing.T, s store.Store) {
	err := s.UpdateConfig(context.Background(), "missing", 60, "*", base)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateStateOnlyState(t *testing.T, s store.Store) {
	ctx := context.Background()
	inserted, err := s.Insert(ctx, record("https://a.example"))
	require.NoError(t, err)

	next := base.Add(time.Minute)
	deadline := base.Add(4 * time.Hour)
	got, err := s.UpdateState(ctx, inserted.ID, func(rec *store.CheckRecord) error {
		require.EqualValues(t, 200, rec.LastState)
		rec.LastState = -200
		rec.Message = "Certificate is expiring in 5 days"
		rec.NextCheckAt = next
		rec.NextNotificationAt = deadline
		// config changes made by the callback must not persist
		rec.IntervalSeconds = 1
		rec.SearchPattern = "ignored"
		rec.URL = "https://ignored.example"
		rec.ConfigUpdatedAt = base.Add(24 * time.Hour)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, -200, got.LastState)

	stored, err := s.Get(ctx, inserted.ID)
	require.NoError(t, err)
	require.EqualValues(t, -200, stored.LastState)
	require.Equal(t, "Certificate is expiring in 5 days", stored.Message)
	require.True(t, stored.NextCheckAt.Equal(next))
	require.True(t, stored.NextNotificationAt.Equal(deadline))
	require.Equal(t, 60, stored.IntervalSeconds)
	require.Equal(t, "*", stored.SearchPattern)
	require.Equal(t, "https://a.example", stored.URL)
	require.True(t, stored.ConfigUpdatedAt.Equal(base))
}

func testUpdateStateCallbackError(t *testing.T, s store.Store) {
	ctx := context.Background()
	inserted, err := s.Insert(ctx, record("https://a.example"))
	require.NoError(t, err)

	wantErr := errors.New("abort")
	_, err = s.UpdateState(ctx, inserted.ID, func(rec *store.CheckRecord) error {
		rec.LastState = 503
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	stored, err := s.Get(ctx, inserted.ID)
	require.NoError(t, err)
	require.EqualValues(t, 200, stored.LastState)
}

func testUpdateStateNotFound(t *testing.T, s store.Store) {
	called := false
	_, err := s.UpdateState(context.Background(), "missing", func(*store.CheckRecord) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.False(t, called)
}

func testUpdateStateConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	inserted, err := s.Insert(ctx, record("https://a.example"))
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateState(ctx, inserted.ID, func(rec *store.CheckRecord) error {
				rec.NextCheckAt = rec.NextCheckAt.Add(time.Second)
				return nil
			})
			if err != nil {
				t.Errorf("UpdateState() error = %v", err)
			}
		}()
	}
	wg.Wait()

	stored, err := s.Get(ctx, inserted.ID)
	require.NoError(t, err)
	require.True(t, stored.NextCheckAt.Equal(base.Add(workers*time.Second)),
		"NextCheckAt = %v, want every increment applied", stored.NextCheckAt)
}

func testDeleteStale(t *testing.T, s store.Store) {
	ctx := context.Background()
	old := record("https://old.example")
	old.ConfigUpdatedAt = base.Add(-20 * time.Minute)
	edge := record("https://edge.example")
	edge.ConfigUpdatedAt = base.Add(-15 * time.Minute)
	fresh := record("https://fresh.example")

	for _, rec := range []store.CheckRecord{old, edge, fresh} {
		_, err := s.Insert(ctx, rec)
		require.NoError(t, err)
	}

	deleted, err := s.DeleteStale(ctx, base.Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, "https://old.example", deleted[0].URL)

	remaining, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)

	_, err = s.GetByURL(ctx, "https://old.example")
	require.ErrorIs(t, err, store.ErrNotFound)

	// a deleted URL can be inserted again
	_, err = s.Insert(ctx, record("https://old.example"))
	require.NoError(t, err)
}

func testEnsureURLIndex(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.EnsureURLIndex(ctx))
	require.NoError(t, s.EnsureURLIndex(ctx))

	_, err := s.Insert(ctx, record("https://a.example"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, record("https://a.example"))
	require.ErrorIs(t, err, store.ErrDuplicateURL)
}

func testTimesRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	rec := record("https://a.example")
	rec.NextCheckAt = time.Date(2026, 4, 1, 12, 0, 0, 123456789, time.UTC)
	inserted, err := s.Insert(ctx, rec)
	require.NoError(t, err)

	got, err := s.Get(ctx, inserted.ID)
	require.NoError(t, err)
	require.True(t, got.NextCheckAt.Equal(rec.NextCheckAt), "got %v want %v", got.NextCheckAt, rec.NextCheckAt)
}
