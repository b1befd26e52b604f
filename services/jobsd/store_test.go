package jobsd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGetJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateJob(ctx, Job{
		Title:       "Kitchen remodel",
		Budget:      "12000",
		Location:    "Somerville, MA",
		Description: "full gut renovation",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	loaded, err := store.GetJob(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, loaded.ID)
	require.Equal(t, "Kitchen remodel", loaded.Title)
	require.Equal(t, "12000", loaded.Budget)
}

func TestCreateJobRequiresTitle(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateJob(context.Background(), Job{Title: "   "})
	require.Error(t, err)
}

func TestGetJobNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetJob(context.Background(), "no-such-id")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestListJobsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.nowFn = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, err := store.CreateJob(ctx, Job{Title: "first"})
	require.NoError(t, err)
	second, err := store.CreateJob(ctx, Job{Title: "second"})
	require.NoError(t, err)

	jobs, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, second.ID, jobs[0].ID)
	require.Equal(t, first.ID, jobs[1].ID)
}

func TestUpdateJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateJob(ctx, Job{Title: "Deck staining", Budget: "800"})
	require.NoError(t, err)

	updated, err := store.UpdateJob(ctx, Job{
		ID:     created.ID,
		Title:  "Deck staining and sealing",
		Budget: "950",
	})
	require.NoError(t, err)
	require.Equal(t, "Deck staining and sealing", updated.Title)
	require.Equal(t, "950", updated.Budget)

	_, err = store.UpdateJob(ctx, Job{ID: "missing", Title: "x"})
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestDeleteJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateJob(ctx, Job{Title: "Gutter cleaning"})
	require.NoError(t, err)
	require.NoError(t, store.DeleteJob(ctx, created.ID))

	_, err = store.GetJob(ctx, created.ID)
	require.ErrorIs(t, err, ErrJobNotFound)
	require.ErrorIs(t, store.DeleteJob(ctx, created.ID), ErrJobNotFound)
}
