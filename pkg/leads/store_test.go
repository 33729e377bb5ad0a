package leads

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db)
	require.NoError(t, err)
	return store
}

func sampleLead(id, name string, status Status) *Lead {
	now := time.Now().UTC().Truncate(time.Second)
	return &Lead{
		ID:        id,
		Name:      name,
		Company:   "Acme Industrial",
		Email:     name + "@example.com",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLStore_InsertAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	l := sampleLead("lead-1", "anna", StatusNew)
	l.Phone = "+48 123 456 789"
	l.Message = "need a quote for 40 tons of rebar"
	l.Source = "contact_form"
	require.NoError(t, store.Insert(ctx, l))

	got, err := store.Get(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, l.Name, got.Name)
	assert.Equal(t, l.Company, got.Company)
	assert.Equal(t, l.Email, got.Email)
	assert.Equal(t, l.Phone, got.Phone)
	assert.Equal(t, l.Message, got.Message)
	assert.Equal(t, l.Source, got.Source)
	assert.Equal(t, StatusNew, got.Status)
	assert.Empty(t, got.AssignedTo)
}

func TestSQLStore_GetMissing(t *testing.T) {
	store := setupStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_List(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	a := sampleLead("lead-a", "anna", StatusNew)
	b := sampleLead("lead-b", "borys", StatusContacted)
	b.AssignedTo = "manager-1"
	b.CreatedAt = a.CreatedAt.Add(time.Minute)
	c := sampleLead("lead-c", "celina", StatusContacted)
	c.AssignedTo = "manager-2"
	c.CreatedAt = a.CreatedAt.Add(2 * time.Minute)

	for _, l := range []*Lead{a, b, c} {
		require.NoError(t, store.Insert(ctx, l))
	}

	t.Run("all newest first", func(t *testing.T) {
		got, err := store.List(ctx, ListFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "lead-c", got[0].ID)
		assert.Equal(t, "lead-a", got[2].ID)
	})

	t.Run("by status", func(t *testing.T) {
		got, err := store.List(ctx, ListFilter{Status: StatusContacted})
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("by assignee", func(t *testing.T) {
		got, err := store.List(ctx, ListFilter{AssignedTo: "manager-1"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "lead-b", got[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := store.List(ctx, ListFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "lead-c", got[0].ID)
	})
}

func TestSQLStore_Update(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	l := sampleLead("lead-1", "anna", StatusNew)
	require.NoError(t, store.Insert(ctx, l))

	l.Status = StatusQualified
	l.AssignedTo = "manager-1"
	require.NoError(t, store.Update(ctx, l))

	got, err := store.Get(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, StatusQualified, got.Status)
	assert.Equal(t, "manager-1", got.AssignedTo)
}

func TestSQLStore_UpdateMissing(t *testing.T) {
	store := setupStore(t)

	err := store.Update(context.Background(), sampleLead("ghost", "nobody", StatusNew))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_Delete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleLead("lead-1", "anna", StatusNew)))
	require.NoError(t, store.Delete(ctx, "lead-1"))

	_, err := store.Get(ctx, "lead-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "lead-1"), ErrNotFound)
}
