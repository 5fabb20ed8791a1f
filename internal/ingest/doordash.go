package ingest

import (
	"github.com/platemetrics/delivery-api/internal/domain"
)

// ParseDoorDash converts normalized DoorDash rows into one transaction per
// native transaction id, last-seen row winning for duplicate keys. Rows without
// a transaction id are skipped and counted.
func ParseDoorDash(t *Table) ([]domain.DoorDashTransaction, int) {
	byKey := make(map[string]int)
	var out []domain.DoorDashTransaction
	skipped := 0

	for _, row := range t.Rows() {
		txnID := row.Get("Transaction ID", "Transaction Id")
		if txnID == "" {
			skipped++
			continue
		}

		adSpend := ParseMoney(row.Get("Ads Fee", "Sponsored Listing Fee", "Ad Spend"))
		promoSpend := ParseMoney(row.Get("Promotion Fee", "Promotions", "Promotion Spend"))
		marketingFees := ParseMoney(row.Get("Marketing Fees", "Marketing fees | (including any applicable taxes)"))
		if marketingFees == 0 {
			marketingFees = adSpend + promoSpend
		}

		txn := domain.DoorDashTransaction{
			TransactionID:    txnID,
			OrderID:          row.Get("Order ID", "DoorDash Order ID"),
			OrderDate:        ParseDate(row.Get("Timestamp Local Date", "Order Date", "Date")),
			StoreName:        row.Get("Store Name", "Store"),
			MerchantStoreID:  row.Get("Merchant Store ID", "Store ID", "Merchant Supplied ID"),
			Channel:          row.Get("Channel"),
			FinalOrderStatus: row.Get("Final Order Status", "Order Status"),

			Subtotal:        ParseMoney(row.Get("Subtotal", "Order Subtotal")),
			Tax:             ParseMoney(row.Get("Tax Subtotal", "Subtotal Tax Passed to Merchant", "Tax")),
			TaxRemitted:     ParseMoney(row.Get("Tax Remitted by DoorDash", "Subtotal Tax Remitted by DoorDash to State")),
			Commission:      ParseMoney(row.Get("Commission", "Commission (incl. tax)")),
			MarketingFees:   marketingFees,
			AdSpend:         adSpend,
			PromotionSpend:  promoSpend,
			ErrorCharges:    ParseMoney(row.Get("Error Charges", "Error Charge")),
			CustomerRefunds: ParseMoney(row.Get("Customer Refunds", "Refunds")),
			DisputesWon:     ParseMoney(row.Get("Error Charge Disputes Won", "Disputes Won")),
			Tip:             ParseMoney(row.Get("Tip Amount", "Staff Tip", "Tip")),
			OtherPayments:   ParseMoney(row.Get("Adjustments", "Other Payments")),
			NetPayout:       ParseMoney(row.Get("Net Payout", "Net Total", "Payout")),
		}

		if i, ok := byKey[txnID]; ok {
			out[i] = txn
			continue
		}
		byKey[txnID] = len(out)
		out = append(out, txn)
	}

	return out, skipped
}
