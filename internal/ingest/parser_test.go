package ingest

import (
	"strings"
	"testing"

	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTable(t *testing.T, csv string, platform domain.Platform) *Table {
	t.Helper()
	table, err := NewTable([]byte(strings.TrimLeft(csv, "\n")), platform)
	require.NoError(t, err)
	return table
}

func TestParseUberEatsLastRowWins(t *testing.T) {
	// One order spans multiple line-item rows; the last row per workflow id
	// carries the aggregated totals.
	table := mustTable(t, `
Workflow ID,Order ID,Order Date,Store Name,Order Status,Sales (excl. tax),Tax on Sales,Total Payout
W1,O1,2024-03-11,Store A,Completed,10.00,1.00,9.00
W1,O1,2024-03-11,Store A,Completed,25.00,2.50,22.50
W2,O2,2024-03-12,Store B,Completed,5.00,0.50,4.50
`, domain.PlatformUberEats)

	txns, skipped := ParseUberEats(table)
	require.Len(t, txns, 2)
	assert.Equal(t, 0, skipped)

	assert.Equal(t, "W1", txns[0].WorkflowID)
	assert.Equal(t, 25.0, txns[0].SalesExclTax)
	assert.Equal(t, 22.5, txns[0].NetPayout)
	assert.Equal(t, "W2", txns[1].WorkflowID)
}

func TestParseUberEatsSkipsRowsWithoutWorkflowID(t *testing.T) {
	table := mustTable(t, `
Workflow ID,Total Payout
W1,10.00
,5.00
,3.00
`, domain.PlatformUberEats)

	txns, skipped := ParseUberEats(table)
	assert.Len(t, txns, 1)
	assert.Equal(t, 2, skipped)
}

func TestParseUberEatsHeaderVariants(t *testing.T) {
	// Older export revision spellings map to the same fields
	table := mustTable(t, `
Workflow UUID,Order UUID,Restaurant Name,Workflow Status,Food Sales (excl Tax),Payout
W1,O1,Store A,Completed,12.00,10.80
`, domain.PlatformUberEats)

	txns, _ := ParseUberEats(table)
	require.Len(t, txns, 1)
	assert.Equal(t, "W1", txns[0].WorkflowID)
	assert.Equal(t, "Store A", txns[0].StoreName)
	assert.Equal(t, "Completed", txns[0].OrderStatus)
	assert.Equal(t, 12.0, txns[0].SalesExclTax)
	assert.Equal(t, 10.8, txns[0].NetPayout)
}

func TestParseDoorDashMarketingFeesFallback(t *testing.T) {
	// When the export has no marketing-fees column the ads+promo decomposition
	// backfills it
	table := mustTable(t, `
Transaction ID,Channel,Final Order Status,Subtotal,Ads Fee,Promotion Fee,Net Payout
T1,Marketplace,Delivered,20.00,2.00,3.00,15.00
`, domain.PlatformDoorDash)

	txns, _ := ParseDoorDash(table)
	require.Len(t, txns, 1)
	assert.Equal(t, 2.0, txns[0].AdSpend)
	assert.Equal(t, 3.0, txns[0].PromotionSpend)
	assert.Equal(t, 5.0, txns[0].MarketingFees)
}

func TestParseDoorDashMarketingFeesColumnWins(t *testing.T) {
	table := mustTable(t, `
Transaction ID,Marketing Fees,Ads Fee,Promotion Fee
T1,7.50,2.00,3.00
`, domain.PlatformDoorDash)

	txns, _ := ParseDoorDash(table)
	require.Len(t, txns, 1)
	assert.Equal(t, 7.5, txns[0].MarketingFees)
}

func TestParseDoorDashDedupe(t *testing.T) {
	table := mustTable(t, `
Transaction ID,Subtotal
T1,10.00
T1,12.00
,99.00
`, domain.PlatformDoorDash)

	txns, skipped := ParseDoorDash(table)
	require.Len(t, txns, 1)
	assert.Equal(t, 12.0, txns[0].Subtotal)
	assert.Equal(t, 1, skipped)
}

func TestParseGrubhubSkipsIncompleteRows(t *testing.T) {
	// Both the transaction id and the order number are required
	table := mustTable(t, `
Transaction ID,Order Number,Subtotal
T1,ON1,10.00
T2,,5.00
,ON3,3.00
`, domain.PlatformGrubhub)

	txns, skipped := ParseGrubhub(table)
	require.Len(t, txns, 1)
	assert.Equal(t, "T1", txns[0].TransactionID)
	assert.Equal(t, 2, skipped)
}

func TestParseGrubhubCleansStoreNumber(t *testing.T) {
	table := mustTable(t, `
Transaction ID,Order Number,Store Number,Street Address
T1,ON1,"=""00123""",123 Main St
`, domain.PlatformGrubhub)

	txns, _ := ParseGrubhub(table)
	require.Len(t, txns, 1)
	assert.Equal(t, "00123", txns[0].StoreNumber)
	assert.Equal(t, "123 Main St", txns[0].StreetAddress)
}

func TestParseGrubhubMoneyFields(t *testing.T) {
	table := mustTable(t, `
Transaction ID,Order Number,Transaction Type,Subtotal,Sales Tax,Commission,Net Deposit
T1,ON1,Prepaid Order,30.00,2.70,6.00,24.00
`, domain.PlatformGrubhub)

	txns, _ := ParseGrubhub(table)
	require.Len(t, txns, 1)
	assert.Equal(t, "Prepaid Order", txns[0].TransactionType)
	assert.Equal(t, 30.0, txns[0].Subtotal)
	assert.Equal(t, 2.7, txns[0].Tax)
	assert.Equal(t, 6.0, txns[0].Commission)
	assert.Equal(t, 24.0, txns[0].NetPayout)
}
