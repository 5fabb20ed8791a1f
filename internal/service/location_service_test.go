package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newLocationFixture(t *testing.T) (*LocationService, *gorm.DB, *repository.LocationRepository) {
	t.Helper()
	db := newTestDB(t)
	locationRepo := repository.NewLocationRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	return NewLocationService(locationRepo, txnRepo, zap.NewNop()), db, locationRepo
}

const masterCSV = `Status,Name,Store Code,Platform Key,Address,City,State,Zip
Open,Downtown,NV001,MK-1,123 Main St,Las Vegas,NV,89101
Open,Sahara,NV012,MK-12,456 W Sahara Ave,Las Vegas,NV,89102
Open,No Code Here,,,789 Nowhere Rd,Las Vegas,NV,89103
`

func TestImportMaster(t *testing.T) {
	svc, _, locationRepo := newLocationFixture(t)
	clientID := uuid.New()
	ctx := context.Background()

	summary, err := svc.ImportMaster(ctx, clientID, "master.csv", []byte(masterCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)

	loc, err := locationRepo.GetByStoreCode(ctx, clientID, "NV001")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "Downtown", loc.Name)
	assert.Equal(t, "MK-1", loc.DoorDashMerchantKey)
	assert.Equal(t, "NV001", loc.UberEatsLabel)
	assert.True(t, loc.Verified)

	// re-import updates in place
	summary, err = svc.ImportMaster(ctx, clientID, "master.csv", []byte(masterCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 2, summary.Updated)
}

func TestImportMasterRequiresClient(t *testing.T) {
	svc, _, _ := newLocationFixture(t)
	_, err := svc.ImportMaster(context.Background(), uuid.Nil, "master.csv", []byte(masterCSV))
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestMerge(t *testing.T) {
	svc, db, locationRepo := newLocationFixture(t)
	clientID := uuid.New()
	ctx := context.Background()

	source := seedLocation(t, db, clientID, "Duplicate")
	target := seedLocation(t, db, clientID, "Canonical")
	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID: clientID, LocationID: &source.ID, WorkflowID: "W1", OrderDate: day(2024, 3, 5),
	}).Error)

	require.NoError(t, svc.Merge(ctx, source.ID, target.ID))

	var txn domain.UberEatsTransaction
	require.NoError(t, db.Where("client_id = ?", clientID).First(&txn).Error)
	require.NotNil(t, txn.LocationID)
	assert.Equal(t, target.ID, *txn.LocationID)

	_, err := locationRepo.GetByID(ctx, source.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMergeValidation(t *testing.T) {
	svc, db, _ := newLocationFixture(t)
	ctx := context.Background()

	a := seedLocation(t, db, uuid.New(), "A")
	b := seedLocation(t, db, uuid.New(), "B")

	assert.ErrorIs(t, svc.Merge(ctx, a.ID, a.ID), ErrInvalidInput)
	// locations of two different clients can never merge
	assert.ErrorIs(t, svc.Merge(ctx, a.ID, b.ID), ErrInvalidInput)
}

func TestDeleteReassignsToBucket(t *testing.T) {
	svc, db, locationRepo := newLocationFixture(t)
	clientID := uuid.New()
	ctx := context.Background()

	loc := seedLocation(t, db, clientID, "Closing")
	require.NoError(t, db.Create(&domain.GrubhubTransaction{
		ClientID: clientID, LocationID: &loc.ID, TransactionID: "T1", OrderDate: day(2024, 3, 5),
	}).Error)

	require.NoError(t, svc.Delete(ctx, loc.ID))

	bucket, err := locationRepo.GetUnmappedBucket(ctx, clientID)
	require.NoError(t, err)
	require.NotNil(t, bucket)

	var txn domain.GrubhubTransaction
	require.NoError(t, db.Where("client_id = ?", clientID).First(&txn).Error)
	require.NotNil(t, txn.LocationID)
	assert.Equal(t, bucket.ID, *txn.LocationID)
}

func TestDeleteBucketRefused(t *testing.T) {
	svc, db, _ := newLocationFixture(t)
	clientID := uuid.New()

	bucket := &domain.Location{ClientID: clientID, Name: domain.UnmappedBucketName, Tag: domain.LocationTagUnmappedBucket}
	require.NoError(t, db.Create(bucket).Error)

	assert.ErrorIs(t, svc.Delete(context.Background(), bucket.ID), ErrCannotDeleteBucket)
}

func TestMergeSuggestions(t *testing.T) {
	svc, db, _ := newLocationFixture(t)
	clientID := uuid.New()
	ctx := context.Background()

	seedLocation(t, db, clientID, "Capriotti's Sandwich Shop")
	seedLocation(t, db, clientID, "Capriottis Sandwich Shop")
	seedLocation(t, db, clientID, "Burger Palace")
	bucket := &domain.Location{ClientID: clientID, Name: domain.UnmappedBucketName, Tag: domain.LocationTagUnmappedBucket}
	require.NoError(t, db.Create(bucket).Error)

	suggestions, err := svc.MergeSuggestions(ctx, clientID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.GreaterOrEqual(t, suggestions[0].Similarity, MergeSuggestionThreshold)
	for _, s := range suggestions {
		assert.NotEqual(t, bucket.ID, s.LocationID)
		assert.NotEqual(t, bucket.ID, s.CandidateID)
	}
}
