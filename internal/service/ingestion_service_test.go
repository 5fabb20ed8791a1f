package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/platemetrics/delivery-api/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newIngestionFixture(t *testing.T) (*IngestionService, *gorm.DB, *repository.LocationRepository, uuid.UUID) {
	t.Helper()
	db := newTestDB(t)
	txnRepo := repository.NewTransactionRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	res := resolver.New(locationRepo, zap.NewNop())
	svc := NewIngestionService(txnRepo, res, nil, zap.NewNop())
	return svc, db, locationRepo, uuid.New()
}

const doorDashExport = `Transaction ID,Merchant Store ID,Channel,Final Order Status,Timestamp Local Date,Subtotal,Tax Subtotal,Net Payout
T1,MK-1,Marketplace,Delivered,2024-03-05,20.00,2.00,15.00
T2,MK-1,Marketplace,Delivered,2024-03-06,30.00,3.00,24.00
`

func TestIngestFileIsIdempotent(t *testing.T) {
	svc, db, _, clientID := newIngestionFixture(t)
	ctx := context.Background()

	downtown := &domain.Location{ClientID: clientID, Name: "Downtown", DoorDashMerchantKey: "MK-1"}
	require.NoError(t, db.Create(downtown).Error)

	result, err := svc.IngestFile(ctx, clientID, domain.PlatformDoorDash, "dd.csv", []byte(doorDashExport))
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsRead)
	assert.Equal(t, 2, result.Transactions)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Unmapped)

	// re-ingesting the identical export updates in place, never duplicates
	result, err = svc.IngestFile(ctx, clientID, domain.PlatformDoorDash, "dd.csv", []byte(doorDashExport))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Updated)

	var count int64
	require.NoError(t, db.Model(&domain.DoorDashTransaction{}).Where("client_id = ?", clientID).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	var txns []domain.DoorDashTransaction
	require.NoError(t, db.Where("client_id = ?", clientID).Find(&txns).Error)
	for _, txn := range txns {
		require.NotNil(t, txn.LocationID)
		assert.Equal(t, downtown.ID, *txn.LocationID)
	}
}

func TestIngestFileUberEatsParenCode(t *testing.T) {
	svc, db, _, clientID := newIngestionFixture(t)
	ctx := context.Background()

	loc := &domain.Location{ClientID: clientID, Name: "Downtown", StoreCode: "NV008"}
	require.NoError(t, db.Create(loc).Error)

	export := `Workflow ID,Store Name,Order Date,Sales (excl. tax),Total Payout
W1,Capriotti's Sandwich Shop (NV008),2024-03-05,108.00,84.50
`
	result, err := svc.IngestFile(ctx, clientID, domain.PlatformUberEats, "ue.csv", []byte(export))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Unmapped)

	var txn domain.UberEatsTransaction
	require.NoError(t, db.Where("client_id = ?", clientID).First(&txn).Error)
	assert.InDelta(t, 108, txn.SalesExclTax, 1e-9)
	require.NotNil(t, txn.LocationID)
	assert.Equal(t, loc.ID, *txn.LocationID)
}

func TestIngestFileRoutesUnknownStoresToBucket(t *testing.T) {
	svc, db, locationRepo, clientID := newIngestionFixture(t)
	ctx := context.Background()

	export := `Transaction ID,Merchant Store ID,Subtotal
T1,NO-SUCH-STORE,10.00
`
	result, err := svc.IngestFile(ctx, clientID, domain.PlatformDoorDash, "dd.csv", []byte(export))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmapped)

	bucket, err := locationRepo.GetUnmappedBucket(ctx, clientID)
	require.NoError(t, err)
	require.NotNil(t, bucket)

	var txn domain.DoorDashTransaction
	require.NoError(t, db.Where("client_id = ?", clientID).First(&txn).Error)
	require.NotNil(t, txn.LocationID)
	assert.Equal(t, bucket.ID, *txn.LocationID)
}

func TestIngestFileRequiresClient(t *testing.T) {
	svc, _, _, _ := newIngestionFixture(t)
	_, err := svc.IngestFile(context.Background(), uuid.Nil, domain.PlatformDoorDash, "dd.csv", []byte(doorDashExport))
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestIngestFileUnknownPlatform(t *testing.T) {
	svc, _, _, clientID := newIngestionFixture(t)
	_, err := svc.IngestFile(context.Background(), clientID, domain.Platform("fax"), "x.csv", []byte("A\n1\n"))
	assert.Error(t, err)
}

func TestPurgeRange(t *testing.T) {
	svc, db, _, clientID := newIngestionFixture(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.DoorDashTransaction{
		ClientID:      clientID,
		TransactionID: "T1",
		OrderDate:     day(2024, 3, 5),
	}).Error)
	require.NoError(t, db.Create(&domain.DoorDashTransaction{
		ClientID:      clientID,
		TransactionID: "T2",
		OrderDate:     day(2024, 4, 1),
	}).Error)

	deleted, err := svc.PurgeRange(ctx, clientID, domain.PlatformDoorDash, day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var count int64
	require.NoError(t, db.Model(&domain.DoorDashTransaction{}).Where("client_id = ?", clientID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPurgeRangeValidation(t *testing.T) {
	svc, _, _, clientID := newIngestionFixture(t)
	ctx := context.Background()

	_, err := svc.PurgeRange(ctx, uuid.Nil, domain.PlatformDoorDash, day(2024, 3, 1), day(2024, 3, 31))
	assert.ErrorIs(t, err, ErrClientRequired)

	_, err = svc.PurgeRange(ctx, clientID, domain.PlatformDoorDash, day(2024, 3, 31), day(2024, 3, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
