package repository_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/table-manager/config"
	"github.com/yeremiapane/table-manager/models"
	"github.com/yeremiapane/table-manager/repository"
)

// setupTestStore opens a private in-memory SQLite database per test.
func setupTestStore(t *testing.T) (*repository.GormTableStore, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.InitDB(config.Config{
		DBDriver: "sqlite",
		DBDSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repository.NewGormTableStore(db, repository.WithClock(steppingClock()))
	require.NoError(t, store.Migrate())
	return store, db
}

// steppingClock advances one second per call so creation order is unambiguous.
func steppingClock() func() time.Time {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestInsertAssignsIdentityAndTimestamps(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	table, err := store.Insert(ctx, "  Patio 1  ", "")
	require.NoError(t, err)

	assert.NotEmpty(t, table.ID)
	assert.Equal(t, "Patio 1", table.Name)
	assert.Equal(t, models.StatusAvailable, table.Status)
	assert.False(t, table.CreatedAt.IsZero())
	assert.False(t, table.UpdatedAt.IsZero())

	found, err := store.FindByID(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, "Patio 1", found.Name)
}

func TestInsertRejectsCaseInsensitiveDuplicate(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "Window", models.StatusAvailable)
	require.NoError(t, err)

	_, err = store.Insert(ctx, "wINDOW", models.StatusOccupied)
	assert.ErrorIs(t, err, repository.ErrDuplicateName)

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNameKeyUniquenessFollowsCaseFolding(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "Café", "")
	require.NoError(t, err)
	_, err = store.Insert(ctx, "Cafe", "")
	require.NoError(t, err)

	_, err = store.Insert(ctx, "CAFÉ", "")
	assert.ErrorIs(t, err, repository.ErrDuplicateName)

	found, err := store.FindByName(ctx, "café")
	require.NoError(t, err)
	assert.Equal(t, "Café", found.Name)
}

func TestInsertRejectsUnknownStatus(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Insert(context.Background(), "Bar 1", models.TableStatus("dirty"))
	assert.ErrorIs(t, err, models.ErrInvalidStatus)
}

func TestConcurrentInsertOfSameNameAdmitsOne(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Insert(ctx, fmt.Sprintf("Terrace%s", strings.Repeat(" ", i%2)), "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrDuplicateName)
	}
	assert.Equal(t, 1, succeeded)
}

func TestFindAllNewestFirst(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := store.Insert(ctx, name, "")
		require.NoError(t, err)
	}

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].Name)
	assert.Equal(t, "B", all[1].Name)
	assert.Equal(t, "A", all[2].Name)
}

func TestFindAllEmptyIsNotNil(t *testing.T) {
	store, _ := setupTestStore(t)

	all, err := store.FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestFindByName(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, "Booth 4", "")
	require.NoError(t, err)

	found, err := store.FindByName(ctx, " booth 4 ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = store.FindByName(ctx, "Booth 5")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, "T1", "")
	require.NoError(t, err)

	name := "Table One"
	status := models.StatusReserved
	updated, err := store.Update(ctx, created.ID, repository.TableUpdate{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Table One", updated.Name)
	assert.Equal(t, models.StatusReserved, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	// the old name is free again, the new one is taken
	_, err = store.FindByName(ctx, "t1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.FindByName(ctx, "TABLE ONE")
	assert.NoError(t, err)
}

func TestUpdateKeepsStatusWhenNil(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, "T1", models.StatusOccupied)
	require.NoError(t, err)

	name := "T1b"
	updated, err := store.Update(ctx, created.ID, repository.TableUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOccupied, updated.Status)
}

func TestUpdateErrors(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	a, err := store.Insert(ctx, "A", "")
	require.NoError(t, err)
	_, err = store.Insert(ctx, "B", "")
	require.NoError(t, err)

	name := "x"
	_, err = store.Update(ctx, "missing", repository.TableUpdate{Name: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	collide := "b"
	_, err = store.Update(ctx, a.ID, repository.TableUpdate{Name: &collide})
	assert.ErrorIs(t, err, repository.ErrDuplicateName)

	bad := models.TableStatus("closed")
	_, err = store.Update(ctx, a.ID, repository.TableUpdate{Status: &bad})
	assert.ErrorIs(t, err, models.ErrInvalidStatus)

	unchanged, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", unchanged.Name)
	assert.Equal(t, models.StatusAvailable, unchanged.Status)
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, "Gone", "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, created.ID), repository.ErrNotFound)

	// same name again gets a fresh id
	again, err := store.Insert(ctx, "Gone", "")
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, again.ID)
}

func TestCountByStatus(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "A", models.StatusAvailable)
	require.NoError(t, err)
	_, err = store.Insert(ctx, "B", models.StatusOccupied)
	require.NoError(t, err)
	_, err = store.Insert(ctx, "C", models.StatusOccupied)
	require.NoError(t, err)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.StatusAvailable])
	assert.Equal(t, int64(2), counts[models.StatusOccupied])
	assert.Equal(t, int64(0), counts[models.StatusReserved])
}

func TestClosedDatabaseIsStoreUnavailable(t *testing.T) {
	store, db := setupTestStore(t)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = store.FindAll(context.Background())
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
}
