package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

func TestProjectStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewProjectStore()

	p := leads.Project{ProjectID: "p1", VendorID: "v1", City: "Austin", BusinessCategory: "bakery", Status: leads.StatusRunning}
	require.NoError(t, store.Create(ctx, p))
	require.Error(t, store.Create(ctx, p))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, leads.StatusRunning, got.Status)
	require.False(t, got.CancelRequested)

	require.NoError(t, store.UpdateStatus(ctx, "p1", leads.StatusFinished))
	got, err = store.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, leads.StatusFinished, got.Status)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, leads.ErrNotFound)
	require.ErrorIs(t, store.UpdateStatus(ctx, "missing", leads.StatusFailed), leads.ErrNotFound)
}

func TestProjectStoreMarkCancelledIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewProjectStore()
	require.NoError(t, store.Create(ctx, leads.Project{ProjectID: "p1", Status: leads.StatusRunning}))

	require.NoError(t, store.MarkCancelled(ctx, "p1"))
	require.NoError(t, store.MarkCancelled(ctx, "p1"))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, leads.StatusCancelled, got.Status)
	require.True(t, got.CancelRequested)
}

func TestLeadStoreFiltersByVendorAndCategory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewLeadStore()
	require.NoError(t, store.BulkInsert(ctx, []leads.Lead{
		{BusinessRecord: leads.BusinessRecord{StoreName: "A", VendorID: "v1", ProjectCategory: "bakery"}},
		{BusinessRecord: leads.BusinessRecord{StoreName: "B", VendorID: "v1", ProjectCategory: "cafe"}},
		{BusinessRecord: leads.BusinessRecord{StoreName: "C", VendorID: "v2", ProjectCategory: "bakery"}},
	}))

	got, err := store.ListByVendorCategory(ctx, "v1", "bakery")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].StoreName)

	got, err = store.ListByVendorCategory(ctx, "v1", "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, 3, store.Count())
}
