package ingest

import (
	"strings"

	"github.com/platemetrics/delivery-api/internal/domain"
)

// ParseGrubhub converts normalized Grubhub rows into one transaction per native
// transaction id, last-seen row winning for duplicate keys. Rows missing the
// transaction id or the order number are skipped and counted; ingestion
// continues for the remainder of the file.
func ParseGrubhub(t *Table) ([]domain.GrubhubTransaction, int) {
	byKey := make(map[string]int)
	var out []domain.GrubhubTransaction
	skipped := 0

	for _, row := range t.Rows() {
		txnID := row.Get("Transaction ID", "Transaction Id")
		orderNumber := row.Get("Order Number", "Order #")
		if txnID == "" || orderNumber == "" {
			skipped++
			continue
		}

		txn := domain.GrubhubTransaction{
			TransactionID:   txnID,
			OrderNumber:     orderNumber,
			OrderDate:       ParseDate(row.Get("Date", "Transaction Date", "Order Date")),
			StoreName:       row.Get("Restaurant Name", "Store Name"),
			StoreNumber:     cleanStoreNumber(row.Get("Store Number", "Store #")),
			StreetAddress:   row.Get("Street Address", "Address", "Restaurant Address"),
			TransactionType: row.Get("Transaction Type", "Type"),

			Subtotal:                ParseMoney(row.Get("Subtotal", "Food & Beverage", "Food and Beverage")),
			Tax:                     ParseMoney(row.Get("Subtotal Tax", "Sales Tax", "Tax")),
			TaxWithheld:             ParseMoney(row.Get("Withheld Tax", "Tax Withheld")),
			Commission:              ParseMoney(row.Get("Commission", "Marketing Commission")),
			DeliveryFee:             ParseMoney(row.Get("Delivery Fee", "Delivery Commission")),
			ProcessingFee:           ParseMoney(row.Get("Processing Fee", "Order Processing Fee")),
			MerchantFundedPromotion: ParseMoney(row.Get("Merchant Funded Promotions", "Restaurant Funded Discounts")),
			GrubhubFundedPromotion:  ParseMoney(row.Get("Grubhub Funded Promotions", "GH Funded Discounts")),
			CustomerRefunds:         ParseMoney(row.Get("Refunds", "Customer Refunds")),
			DisputesWon:             ParseMoney(row.Get("Disputes Won", "Adjustments Won")),
			Tip:                     ParseMoney(row.Get("Tip", "Tips")),
			OtherPayments:           ParseMoney(row.Get("Miscellaneous", "Other Payments")),
			NetPayout:               ParseMoney(row.Get("Net Deposit", "Net Payout", "Deposit")),
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

// cleanStoreNumber strips the spreadsheet-style quoting some Grubhub exports
// wrap store numbers in (e.g. `="00123"`)
func cleanStoreNumber(s string) string {
	return strings.Trim(s, `="'`)
}
