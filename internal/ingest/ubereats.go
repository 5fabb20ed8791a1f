package ingest

import (
	"github.com/platemetrics/delivery-api/internal/domain"
)

// ParseUberEats converts normalized Uber Eats rows into one transaction per
// workflow id. A single order spans multiple line-item rows in this export; the
// last row per workflow id wins because later rows carry the aggregated totals.
// Rows without a workflow id are skipped and counted, never fatal.
func ParseUberEats(t *Table) ([]domain.UberEatsTransaction, int) {
	byKey := make(map[string]int)
	var out []domain.UberEatsTransaction
	skipped := 0

	for _, row := range t.Rows() {
		workflowID := row.Get("Workflow ID", "Workflow UUID")
		if workflowID == "" {
			skipped++
			continue
		}

		txn := domain.UberEatsTransaction{
			WorkflowID:  workflowID,
			OrderID:     row.Get("Order ID", "Order UUID"),
			OrderDate:   ParseDate(row.Get("Order Date", "Order Accept Date")),
			StoreName:   row.Get("Store Name", "Restaurant Name", "Store"),
			StoreID:     row.Get("Store ID", "External Store ID"),
			OrderStatus: row.Get("Order Status", "Workflow Status"),
			DiningMode:  row.Get("Dining Mode"),

			SalesExclTax:        ParseMoney(row.Get("Sales (excl. tax)", "Food Sales (excl Tax)", "Sales excluding tax")),
			Tax:                 ParseMoney(row.Get("Tax on Sales", "Tax", "Sales Tax")),
			TaxWithheld:         ParseMoney(row.Get("Tax Withheld", "Backup Withholding Tax")),
			UnfulfilledSales:    ParseMoney(row.Get("Unfulfilled Sales (excl. tax)", "Unfulfilled Sales")),
			UnfulfilledRefunds:  ParseMoney(row.Get("Unfulfilled Refunds (excl. tax)", "Unfulfilled Refunds")),
			Commission:          ParseMoney(row.Get("Uber Fees", "Marketplace Fee", "Uber Service Fee")),
			DeliveryNetworkFee:  ParseMoney(row.Get("Delivery Network Fee", "Courier Fee")),
			MarketingAdjustment: ParseMoney(row.Get("Marketing Adjustment", "Marketing adjustment")),
			AdSpend:             ParseMoney(row.Get("Ad Spend", "Ads Spend", "Advertising Spend")),
			OfferSpend:          ParseMoney(row.Get("Offers (excl. tax)", "Promotions on Food", "Offer Spend")),
			LoyaltySpend:        ParseMoney(row.Get("Loyalty (excl. tax)", "Loyalty Spend")),
			CustomerRefunds:     ParseMoney(row.Get("Refunds (excl. tax)", "Customer Refunds")),
			DisputesWon:         ParseMoney(row.Get("Order Error Adjustments", "Disputes Won")),
			Tip:                 ParseMoney(row.Get("Tips", "Tip")),
			OtherPayments:       ParseMoney(row.Get("Other Payments", "Other payments (incl. tax)", "Miscellaneous Payments")),
			NetPayout:           ParseMoney(row.Get("Total Payout", "Payout", "Net Payout")),
		}

		if i, ok := byKey[workflowID]; ok {
			out[i] = txn
			continue
		}
		byKey[workflowID] = len(out)
		out = append(out, txn)
	}

	return out, skipped
}
