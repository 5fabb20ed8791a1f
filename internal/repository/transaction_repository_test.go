package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/database"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUpsertGrubhubIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	clientID := uuid.New()
	ctx := context.Background()

	batch := []domain.GrubhubTransaction{
		{TransactionID: "T1", OrderNumber: "ON1", OrderDate: day(2024, 3, 5), Subtotal: 10},
		{TransactionID: "T2", OrderNumber: "ON2", OrderDate: day(2024, 3, 6), Subtotal: 20},
	}
	created, updated, err := repo.UpsertGrubhub(ctx, clientID, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, updated)

	// same keys again, one value changed
	batch = []domain.GrubhubTransaction{
		{TransactionID: "T1", OrderNumber: "ON1", OrderDate: day(2024, 3, 5), Subtotal: 15},
		{TransactionID: "T2", OrderNumber: "ON2", OrderDate: day(2024, 3, 6), Subtotal: 20},
	}
	created, updated, err = repo.UpsertGrubhub(ctx, clientID, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 2, updated)

	txns, err := repo.ListGrubhub(ctx, domain.MetricsFilter{ClientID: clientID, IncludeUnmapped: true})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.InDelta(t, 15, txns[0].Subtotal, 1e-9)
}

func TestUpsertScopedByClient(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()
	clientA, clientB := uuid.New(), uuid.New()

	_, _, err := repo.UpsertUberEats(ctx, clientA, []domain.UberEatsTransaction{{WorkflowID: "W1"}})
	require.NoError(t, err)
	// same natural key under a different client is a distinct transaction
	created, updated, err := repo.UpsertUberEats(ctx, clientB, []domain.UberEatsTransaction{{WorkflowID: "W1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, updated)
}

func TestListWindowSemantics(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	clientID := uuid.New()
	ctx := context.Background()

	for i, date := range []time.Time{day(2024, 3, 4), day(2024, 3, 11), day(2024, 3, 17), day(2024, 3, 18)} {
		require.NoError(t, db.Create(&domain.UberEatsTransaction{
			ClientID:   clientID,
			WorkflowID: fmt.Sprintf("W%d", i),
			OrderDate:  date,
		}).Error)
	}

	// [WeekStart, WeekEnd] as inclusive week starts: WeekEnd's whole week is in
	start, end := day(2024, 3, 11), day(2024, 3, 11)
	txns, err := repo.ListUberEats(ctx, domain.MetricsFilter{
		ClientID:        clientID,
		WeekStart:       &start,
		WeekEnd:         &end,
		IncludeUnmapped: true,
	})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "W1", txns[0].WorkflowID)
	assert.Equal(t, "W2", txns[1].WorkflowID)
}

func TestPurgeRange(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	clientID := uuid.New()
	other := uuid.New()
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.DoorDashTransaction{ClientID: clientID, TransactionID: "T1", OrderDate: day(2024, 3, 5)}).Error)
	require.NoError(t, db.Create(&domain.DoorDashTransaction{ClientID: clientID, TransactionID: "T2", OrderDate: day(2024, 4, 5)}).Error)
	require.NoError(t, db.Create(&domain.DoorDashTransaction{ClientID: other, TransactionID: "T1", OrderDate: day(2024, 3, 5)}).Error)

	deleted, err := repo.PurgeRange(ctx, clientID, domain.PlatformDoorDash, day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	// the other client's data is untouched
	txns, err := repo.ListDoorDash(ctx, domain.MetricsFilter{ClientID: other, IncludeUnmapped: true})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestPurgeRangeUnknownPlatform(t *testing.T) {
	repo := NewTransactionRepository(newTestDB(t))
	_, err := repo.PurgeRange(context.Background(), uuid.New(), domain.Platform("fax"), day(2024, 3, 1), day(2024, 3, 31))
	assert.Error(t, err)
}

func TestReassignLocation(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	clientID := uuid.New()
	from, to := uuid.New(), uuid.New()
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.UberEatsTransaction{ClientID: clientID, LocationID: &from, WorkflowID: "W1", OrderDate: day(2024, 3, 5)}).Error)
	require.NoError(t, db.Create(&domain.GrubhubTransaction{ClientID: clientID, LocationID: &from, TransactionID: "T1", OrderDate: day(2024, 3, 5)}).Error)

	require.NoError(t, repo.ReassignLocation(ctx, clientID, from, to))

	ue, err := repo.ListUberEats(ctx, domain.MetricsFilter{ClientID: clientID, LocationID: &to, IncludeUnmapped: true})
	require.NoError(t, err)
	assert.Len(t, ue, 1)
	gh, err := repo.ListGrubhub(ctx, domain.MetricsFilter{ClientID: clientID, LocationID: &to, IncludeUnmapped: true})
	require.NoError(t, err)
	assert.Len(t, gh, 1)
}

func TestSetLocation(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db)
	clientID := uuid.New()
	target := uuid.New()
	ctx := context.Background()

	t1 := domain.UberEatsTransaction{ClientID: clientID, WorkflowID: "W1", OrderDate: day(2024, 3, 5)}
	t2 := domain.UberEatsTransaction{ClientID: clientID, WorkflowID: "W2", OrderDate: day(2024, 3, 5)}
	require.NoError(t, db.Create(&t1).Error)
	require.NoError(t, db.Create(&t2).Error)

	require.NoError(t, repo.SetLocation(ctx, domain.PlatformUberEats, []uuid.UUID{t1.ID}, target))

	moved, err := repo.ListUberEats(ctx, domain.MetricsFilter{ClientID: clientID, LocationID: &target, IncludeUnmapped: true})
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "W1", moved[0].WorkflowID)

	// empty id list is a no-op
	require.NoError(t, repo.SetLocation(ctx, domain.PlatformUberEats, nil, target))
}

func TestReplaceForClient(t *testing.T) {
	db := newTestDB(t)
	repo := NewWeeklyFinancialRepository(db)
	clientID := uuid.New()
	locationID := uuid.New()
	ctx := context.Background()

	rows := []domain.WeeklyFinancial{
		{LocationID: locationID, WeekStart: day(2024, 3, 4), Sales: 100},
		{LocationID: locationID, WeekStart: day(2024, 3, 11), Sales: 200},
	}
	require.NoError(t, repo.ReplaceForClient(ctx, clientID, rows))

	got, err := repo.List(ctx, clientID, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, clientID, got[0].ClientID)

	// replacement is wholesale: the old rows are gone, not merged
	require.NoError(t, repo.ReplaceForClient(ctx, clientID, []domain.WeeklyFinancial{
		{LocationID: locationID, WeekStart: day(2024, 3, 18), Sales: 300},
	}))
	got, err = repo.List(ctx, clientID, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 300, got[0].Sales, 1e-9)

	// empty replacement clears the cache
	require.NoError(t, repo.ReplaceForClient(ctx, clientID, nil))
	got, err = repo.List(ctx, clientID, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
