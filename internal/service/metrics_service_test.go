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
)

func TestDoorDashRowChannelCriteria(t *testing.T) {
	marketplace := &domain.DoorDashTransaction{
		Channel:          domain.DoorDashChannelMarketplace,
		FinalOrderStatus: domain.DoorDashStatusDelivered,
		Subtotal:         20,
		Tax:              2,
		AdSpend:          1,
		NetPayout:        15,
	}
	row := doorDashRow(marketplace)
	assert.True(t, row.isOrder)
	assert.InDelta(t, 22, row.sales, 1e-9)

	// catering order: no sales contribution, payout still carried
	catering := &domain.DoorDashTransaction{
		Channel:          "Catering",
		FinalOrderStatus: domain.DoorDashStatusDelivered,
		Subtotal:         30,
		NetPayout:        25,
	}
	row = doorDashRow(catering)
	assert.False(t, row.isOrder)
	assert.Zero(t, row.sales)
	assert.InDelta(t, 25, row.payout, 1e-9)

	canceled := &domain.DoorDashTransaction{
		Channel:          domain.DoorDashChannelMarketplace,
		FinalOrderStatus: "Cancelled",
		Subtotal:         10,
	}
	assert.False(t, doorDashRow(canceled).isOrder)
}

func TestGrubhubRowTransactionTypes(t *testing.T) {
	for _, typ := range []string{"", "Order", "Prepaid Order", "Delivery Order"} {
		row := grubhubRow(&domain.GrubhubTransaction{TransactionType: typ, Subtotal: 10, Tax: 1})
		assert.True(t, row.isOrder, "type %q should count as an order", typ)
		assert.InDelta(t, 11, row.sales, 1e-9)
	}
	row := grubhubRow(&domain.GrubhubTransaction{TransactionType: "Adjustment", Subtotal: 10, NetPayout: -3})
	assert.False(t, row.isOrder)
	assert.InDelta(t, -3, row.payout, 1e-9)
}

func TestUberEatsRowMarketingFlag(t *testing.T) {
	row := uberEatsRow(&domain.UberEatsTransaction{SalesExclTax: 100, Tax: 10, MarketingAdjustment: -2, AdSpend: -5})
	assert.True(t, row.marketing)
	// spends are normalized to magnitudes regardless of export sign convention
	assert.InDelta(t, 5, row.adSpend, 1e-9)

	row = uberEatsRow(&domain.UberEatsTransaction{SalesExclTax: 100})
	assert.False(t, row.marketing)
}

func TestAggregateRowsPartitionsMarketingAndOrganic(t *testing.T) {
	rows := []metricRow{
		{platform: domain.PlatformUberEats, isOrder: true, sales: 100, marketing: true, adSpend: 10, payout: 80},
		{platform: domain.PlatformUberEats, isOrder: true, sales: 50, payout: 40},
		{platform: domain.PlatformUberEats, isOrder: true, sales: 30, marketing: true, offerValue: 5, payout: 25},
		{platform: domain.PlatformDoorDash, isOrder: true, sales: 999},
	}
	m := aggregateRows(rows, domain.PlatformUberEats)

	assert.Equal(t, 3, m.Orders)
	assert.Equal(t, 2, m.MarketingOrders)
	assert.Equal(t, m.Orders, m.MarketingOrders+m.OrganicOrders)
	assert.InDelta(t, 180, m.TotalSales, 1e-9)
	assert.InDelta(t, 130, m.MarketingSales, 1e-9)
	assert.InDelta(t, m.TotalSales, m.MarketingSales+m.OrganicSales, 1e-9)
	assert.InDelta(t, 15, m.MarketingInvestment, 1e-9)
	assert.InDelta(t, 130.0/15.0, m.ROAS, 1e-9)
	assert.InDelta(t, 60, m.AvgOrderValue, 1e-9)
	assert.InDelta(t, 145.0/180.0*100, m.PayoutPct, 1e-9)
}

func TestAggregateRowsZeroGuards(t *testing.T) {
	m := aggregateRows(nil, domain.PlatformUberEats)
	assert.Zero(t, m.ROAS)
	assert.Zero(t, m.AvgOrderValue)
	assert.Zero(t, m.PayoutPct)
}

func TestBlendRecomputesRatios(t *testing.T) {
	platforms := []domain.PlatformMetrics{
		{MarketingSales: 100, AdSpend: 10, MarketingInvestment: 10, ROAS: 10},
		{MarketingSales: 200, AdSpend: 40, MarketingInvestment: 40, ROAS: 5},
	}
	totals := blend(platforms)
	// blended from summed bases: 300/50, not the 7.5 average of per-platform ROAS
	assert.InDelta(t, 6, totals.ROAS, 1e-9)
}

func TestPctChange(t *testing.T) {
	assert.Nil(t, pctChange(5, 0))
	got := pctChange(150, 100)
	require.NotNil(t, got)
	assert.InDelta(t, 50, *got, 1e-9)
	got = pctChange(50, 100)
	require.NotNil(t, got)
	assert.InDelta(t, -50, *got, 1e-9)
}

func TestOverviewExcludesUnmappedBucket(t *testing.T) {
	db := newTestDB(t)
	txnRepo := repository.NewTransactionRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	svc := NewMetricsService(txnRepo, locationRepo, zap.NewNop())
	clientID := uuid.New()
	ctx := context.Background()

	store := seedLocation(t, db, clientID, "Store")
	bucket := &domain.Location{ClientID: clientID, Name: domain.UnmappedBucketName, Tag: domain.LocationTagUnmappedBucket}
	require.NoError(t, db.Create(bucket).Error)

	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID: clientID, LocationID: &store.ID, WorkflowID: "W1",
		OrderDate: day(2024, 3, 5), SalesExclTax: 100, Tax: 10, NetPayout: 80,
	}).Error)
	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID: clientID, LocationID: &bucket.ID, WorkflowID: "W2",
		OrderDate: day(2024, 3, 5), SalesExclTax: 40, Tax: 4, NetPayout: 30,
	}).Error)

	overview, err := svc.Overview(ctx, domain.MetricsFilter{ClientID: clientID})
	require.NoError(t, err)
	assert.InDelta(t, 110, overview.Totals.TotalSales, 1e-9)
	assert.InDelta(t, 80, overview.Totals.NetPayout, 1e-9)

	overview, err = svc.Overview(ctx, domain.MetricsFilter{ClientID: clientID, IncludeUnmapped: true})
	require.NoError(t, err)
	assert.InDelta(t, 154, overview.Totals.TotalSales, 1e-9)
	assert.InDelta(t, 110, overview.Totals.NetPayout, 1e-9)
}

func TestOverviewWeekOverWeek(t *testing.T) {
	db := newTestDB(t)
	svc := NewMetricsService(repository.NewTransactionRepository(db), repository.NewLocationRepository(db), zap.NewNop())
	clientID := uuid.New()
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID: clientID, WorkflowID: "W1",
		OrderDate: day(2024, 3, 4), SalesExclTax: 100, NetPayout: 80,
	}).Error)
	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID: clientID, WorkflowID: "W2",
		OrderDate: day(2024, 3, 11), SalesExclTax: 150, NetPayout: 120,
	}).Error)

	week := day(2024, 3, 11)
	overview, err := svc.Overview(ctx, domain.MetricsFilter{
		ClientID:        clientID,
		WeekStart:       &week,
		WeekEnd:         &week,
		IncludeUnmapped: true,
	})
	require.NoError(t, err)
	require.NotNil(t, overview.WeekOverWeek)
	require.NotNil(t, overview.WeekOverWeek.TotalSales)
	assert.InDelta(t, 50, *overview.WeekOverWeek.TotalSales, 1e-9)
	// no marketing activity either week: delta undefined, not zero
	assert.Nil(t, overview.WeekOverWeek.MarketingSales)
}

func TestByLocation(t *testing.T) {
	db := newTestDB(t)
	svc := NewMetricsService(repository.NewTransactionRepository(db), repository.NewLocationRepository(db), zap.NewNop())
	clientID := uuid.New()
	ctx := context.Background()

	locA := seedLocation(t, db, clientID, "Location A")
	locB := seedLocation(t, db, clientID, "Location B")

	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID: clientID, LocationID: &locA.ID, WorkflowID: "W1",
		OrderDate: day(2024, 3, 5), SalesExclTax: 100, NetPayout: 80,
	}).Error)
	require.NoError(t, db.Create(&domain.GrubhubTransaction{
		ClientID: clientID, LocationID: &locB.ID, TransactionID: "T1",
		OrderDate: day(2024, 3, 5), Subtotal: 50, NetPayout: 40,
	}).Error)

	result, err := svc.ByLocation(ctx, domain.MetricsFilter{ClientID: clientID, IncludeUnmapped: true})
	require.NoError(t, err)
	require.Len(t, result, 2)

	byName := map[string]domain.LocationMetrics{}
	for _, lm := range result {
		byName[lm.LocationName] = lm
	}
	a := byName["Location A"]
	require.Len(t, a.Platforms, 1)
	assert.Equal(t, domain.PlatformUberEats, a.Platforms[0].Platform)
	assert.InDelta(t, 100, a.Totals.TotalSales, 1e-9)

	b := byName["Location B"]
	require.Len(t, b.Platforms, 1)
	assert.Equal(t, domain.PlatformGrubhub, b.Platforms[0].Platform)
}
