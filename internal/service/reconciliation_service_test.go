package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildIncomeStatement(t *testing.T) {
	db := newTestDB(t)
	txnRepo := repository.NewTransactionRepository(db)
	svc := NewReconciliationService(txnRepo, 0.5, zap.NewNop())
	clientID := uuid.New()
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID:     clientID,
		WorkflowID:   "W1",
		OrderDate:    day(2024, 3, 5),
		OrderStatus:  "Completed",
		SalesExclTax: 100,
		Tax:          10,
		NetPayout:    80,
	}).Error)
	// canceled order: excluded from sales, payout still reconciled
	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID:     clientID,
		WorkflowID:   "W2",
		OrderDate:    day(2024, 3, 6),
		OrderStatus:  "Canceled",
		SalesExclTax: 50,
		NetPayout:    5,
	}).Error)

	require.NoError(t, db.Create(&domain.DoorDashTransaction{
		ClientID:         clientID,
		TransactionID:    "T1",
		OrderDate:        day(2024, 3, 5),
		Channel:          domain.DoorDashChannelMarketplace,
		FinalOrderStatus: domain.DoorDashStatusDelivered,
		Subtotal:         20,
		Tax:              2,
		AdSpend:          2,
		PromotionSpend:   3,
		MarketingFees:    5,
		NetPayout:        15,
	}).Error)
	// catering channel: payout counts, sales do not
	require.NoError(t, db.Create(&domain.DoorDashTransaction{
		ClientID:         clientID,
		TransactionID:    "T2",
		OrderDate:        day(2024, 3, 6),
		Channel:          "Catering",
		FinalOrderStatus: domain.DoorDashStatusDelivered,
		Subtotal:         30,
		NetPayout:        25,
	}).Error)

	stmt, err := svc.BuildIncomeStatement(ctx, clientID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, stmt.COGSRate)

	ue := stmt.UberEats
	assert.InDelta(t, 110, ue.SalesInclTax.Amount, 1e-9)
	assert.InDelta(t, 100, ue.SalesInclTax.PctOfSales, 1e-9)
	assert.InDelta(t, 85, ue.NetPayout.Amount, 1e-9)
	assert.InDelta(t, 55, ue.COGSEstimate.Amount, 1e-9)
	assert.InDelta(t, 30, ue.NetMargin.Amount, 1e-9)
	// 85 arrived vs 110 explained by the taxonomy
	assert.InDelta(t, -25, ue.Others.Unaccounted.Amount, 1e-9)

	dd := stmt.DoorDash
	assert.InDelta(t, 22, dd.SalesInclTax.Amount, 1e-9)
	assert.InDelta(t, 40, dd.NetPayout.Amount, 1e-9)
	assert.InDelta(t, 2, dd.Marketing.AdSpend.Amount, 1e-9)
	assert.InDelta(t, 3, dd.Marketing.PromoSpend.Amount, 1e-9)
	// marketing fees fully decomposed into ads+promos, no platform fee residual
	assert.InDelta(t, 0, dd.Marketing.PlatformMarketingFee.Amount, 1e-9)
	assert.InDelta(t, 5, dd.Marketing.Total.Amount, 1e-9)
	assert.InDelta(t, 11, dd.COGSEstimate.Amount, 1e-9)
	assert.InDelta(t, 29, dd.NetMargin.Amount, 1e-9)
	assert.InDelta(t, 23, dd.Others.Unaccounted.Amount, 1e-9)

	totals := stmt.Totals
	assert.InDelta(t, 132, totals.SalesInclTax.Amount, 1e-9)
	assert.InDelta(t, 125, totals.NetPayout.Amount, 1e-9)
	assert.InDelta(t, 66, totals.COGSEstimate.Amount, 1e-9)
	assert.InDelta(t, 59, totals.NetMargin.Amount, 1e-9)
}

func TestBuildIncomeStatementWindowInclusive(t *testing.T) {
	db := newTestDB(t)
	txnRepo := repository.NewTransactionRepository(db)
	svc := NewReconciliationService(txnRepo, 0.46, zap.NewNop())
	clientID := uuid.New()

	// on the last day of the window
	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID:   clientID,
		WorkflowID: "W1",
		OrderDate:  day(2024, 3, 11),
		NetPayout:  10,
	}).Error)
	// one day past it
	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID:   clientID,
		WorkflowID: "W2",
		OrderDate:  day(2024, 3, 12),
		NetPayout:  99,
	}).Error)

	stmt, err := svc.BuildIncomeStatement(context.Background(), clientID, day(2024, 3, 1), day(2024, 3, 11))
	require.NoError(t, err)
	assert.InDelta(t, 10, stmt.UberEats.NetPayout.Amount, 1e-9)
}

func TestBuildIncomeStatementRequiresClient(t *testing.T) {
	svc := NewReconciliationService(repository.NewTransactionRepository(newTestDB(t)), 0.46, zap.NewNop())
	_, err := svc.BuildIncomeStatement(context.Background(), uuid.Nil, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestNewReconciliationServiceClampsRate(t *testing.T) {
	svc := NewReconciliationService(nil, 0, zap.NewNop())
	rate, _ := svc.cogsRate.Float64()
	assert.Equal(t, DefaultCOGSRate, rate)

	svc = NewReconciliationService(nil, 1.5, zap.NewNop())
	rate, _ = svc.cogsRate.Float64()
	assert.Equal(t, DefaultCOGSRate, rate)
}

func TestWriteCSV(t *testing.T) {
	db := newTestDB(t)
	svc := NewReconciliationService(repository.NewTransactionRepository(db), 0.5, zap.NewNop())
	clientID := uuid.New()

	require.NoError(t, db.Create(&domain.UberEatsTransaction{
		ClientID:     clientID,
		WorkflowID:   "W1",
		OrderDate:    day(2024, 3, 5),
		SalesExclTax: 100,
		Tax:          10,
		NetPayout:    80,
	}).Error)

	stmt, err := svc.BuildIncomeStatement(context.Background(), clientID, time.Time{}, time.Time{})
	require.NoError(t, err)

	out, err := svc.WriteCSV(stmt)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 27)
	assert.Equal(t, "Line Item,Uber Eats,DoorDash,Grubhub,Total,% of Sales", lines[0])
	assert.Contains(t, lines[1], "Sales (incl. tax),110.00")
	assert.Contains(t, string(out), "Net Payout,80.00")
}
