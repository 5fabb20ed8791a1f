package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultCOGSRate is the synthetic cost-of-goods-sold estimate applied to
// sales including tax. It is a business approximation with no observed
// derivation; overridable via configuration, never hard-coded at call sites.
const DefaultCOGSRate = 0.46

// ReconciliationService reduces each platform's transactions into the fixed
// income-statement taxonomy and rolls them into comparable totals. Monetary
// lines are summed with decimal arithmetic so per-penny reconciliation does
// not drift.
type ReconciliationService struct {
	txnRepo  *repository.TransactionRepository
	cogsRate decimal.Decimal
	logger   *zap.Logger
}

func NewReconciliationService(txnRepo *repository.TransactionRepository, cogsRate float64, logger *zap.Logger) *ReconciliationService {
	if cogsRate <= 0 || cogsRate >= 1 {
		cogsRate = DefaultCOGSRate
	}
	return &ReconciliationService{
		txnRepo:  txnRepo,
		cogsRate: decimal.NewFromFloat(cogsRate),
		logger:   logger,
	}
}

// statementAcc accumulates one platform's income statement in decimals
type statementAcc struct {
	salesInclTax       decimal.Decimal
	salesExclTax       decimal.Decimal
	unfulfilledSales   decimal.Decimal
	unfulfilledRefunds decimal.Decimal
	taxOnSales         decimal.Decimal
	taxWithheld        decimal.Decimal
	taxRemitted        decimal.Decimal
	commission         decimal.Decimal
	deliveryCharge     decimal.Decimal
	loyalty            decimal.Decimal
	adSpend            decimal.Decimal
	promoSpend         decimal.Decimal
	platformMktFee     decimal.Decimal
	merchantDiscount   decimal.Decimal
	thirdPartyDiscount decimal.Decimal
	customerRefunds    decimal.Decimal
	disputesWon        decimal.Decimal
	tip                decimal.Decimal
	restaurantFees     decimal.Decimal
	miscellaneous      decimal.Decimal
	netPayout          decimal.Decimal
}

// BuildIncomeStatement reduces a client's transactions in [from, to] into the
// per-platform income statements plus totals. Sales-derived lines honor each
// platform's completion/channel criteria; net payout sums across all statuses
// for full cash reconciliation. The two can diverge by design.
func (s *ReconciliationService) BuildIncomeStatement(ctx context.Context, clientID uuid.UUID, from, to time.Time) (*domain.IncomeStatement, error) {
	if clientID == uuid.Nil {
		return nil, ErrClientRequired
	}

	filter := domain.MetricsFilter{ClientID: clientID, IncludeUnmapped: true}
	if !from.IsZero() {
		filter.WeekStart = &from
	}
	if !to.IsZero() {
		// The repository treats WeekEnd as an inclusive week start; shift so the
		// window closes at end of day `to`
		weekEnd := to.AddDate(0, 0, -6)
		filter.WeekEnd = &weekEnd
	}

	ue, err := s.txnRepo.ListUberEats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load uber eats transactions: %w", err)
	}
	dd, err := s.txnRepo.ListDoorDash(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load doordash transactions: %w", err)
	}
	gh, err := s.txnRepo.ListGrubhub(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load grubhub transactions: %w", err)
	}

	ueAcc := s.reduceUberEats(ue)
	ddAcc := s.reduceDoorDash(dd)
	ghAcc := s.reduceGrubhub(gh)
	totals := sumAccs(ueAcc, ddAcc, ghAcc)

	stmt := &domain.IncomeStatement{
		ClientID: clientID,
		From:     from,
		To:       to,
		UberEats: s.finalize(ueAcc, domain.PlatformUberEats),
		DoorDash: s.finalize(ddAcc, domain.PlatformDoorDash),
		Grubhub:  s.finalize(ghAcc, domain.PlatformGrubhub),
		Totals:   s.finalize(totals, ""),
	}
	stmt.COGSRate, _ = s.cogsRate.Float64()
	return stmt, nil
}

func (s *ReconciliationService) reduceUberEats(txns []domain.UberEatsTransaction) statementAcc {
	var a statementAcc
	for i := range txns {
		t := &txns[i]
		if uberEatsCountsTowardSales(t) {
			a.salesExclTax = a.salesExclTax.Add(dec(t.SalesExclTax))
			a.taxOnSales = a.taxOnSales.Add(dec(t.Tax))
			a.salesInclTax = a.salesInclTax.Add(dec(t.SalesExclTax)).Add(dec(t.Tax))
			a.unfulfilledSales = a.unfulfilledSales.Add(dec(t.UnfulfilledSales))
			a.unfulfilledRefunds = a.unfulfilledRefunds.Add(dec(t.UnfulfilledRefunds))
		}
		a.taxWithheld = a.taxWithheld.Add(dec(t.TaxWithheld))
		a.commission = a.commission.Add(dec(t.Commission))
		a.deliveryCharge = a.deliveryCharge.Add(dec(t.DeliveryNetworkFee))
		a.loyalty = a.loyalty.Add(dec(t.LoyaltySpend))
		a.adSpend = a.adSpend.Add(dec(t.AdSpend))
		a.promoSpend = a.promoSpend.Add(dec(t.OfferSpend))
		a.platformMktFee = a.platformMktFee.Add(dec(t.MarketingAdjustment))
		a.customerRefunds = a.customerRefunds.Add(dec(t.CustomerRefunds))
		a.disputesWon = a.disputesWon.Add(dec(t.DisputesWon))
		a.tip = a.tip.Add(dec(t.Tip))
		a.miscellaneous = a.miscellaneous.Add(dec(t.OtherPayments))
		a.netPayout = a.netPayout.Add(dec(t.NetPayout))
	}
	return a
}

func (s *ReconciliationService) reduceDoorDash(txns []domain.DoorDashTransaction) statementAcc {
	var a statementAcc
	for i := range txns {
		t := &txns[i]
		if t.CountsTowardSales() {
			a.salesExclTax = a.salesExclTax.Add(dec(t.Subtotal))
			a.taxOnSales = a.taxOnSales.Add(dec(t.Tax))
			a.salesInclTax = a.salesInclTax.Add(dec(t.Subtotal)).Add(dec(t.Tax))
		}
		a.taxRemitted = a.taxRemitted.Add(dec(t.TaxRemitted))
		a.commission = a.commission.Add(dec(t.Commission))
		a.adSpend = a.adSpend.Add(dec(t.AdSpend))
		a.promoSpend = a.promoSpend.Add(dec(t.PromotionSpend))
		// Whatever marketing fee the platform billed beyond the decomposed
		// ads/promos is its own line
		residual := dec(t.MarketingFees).Sub(dec(t.AdSpend)).Sub(dec(t.PromotionSpend))
		a.platformMktFee = a.platformMktFee.Add(residual)
		a.customerRefunds = a.customerRefunds.Add(dec(t.CustomerRefunds))
		a.disputesWon = a.disputesWon.Add(dec(t.DisputesWon))
		a.tip = a.tip.Add(dec(t.Tip))
		a.restaurantFees = a.restaurantFees.Add(dec(t.ErrorCharges))
		a.miscellaneous = a.miscellaneous.Add(dec(t.OtherPayments))
		a.netPayout = a.netPayout.Add(dec(t.NetPayout))
	}
	return a
}

func (s *ReconciliationService) reduceGrubhub(txns []domain.GrubhubTransaction) statementAcc {
	var a statementAcc
	for i := range txns {
		t := &txns[i]
		if isGrubhubOrder(t.TransactionType) {
			a.salesExclTax = a.salesExclTax.Add(dec(t.Subtotal))
			a.taxOnSales = a.taxOnSales.Add(dec(t.Tax))
			a.salesInclTax = a.salesInclTax.Add(dec(t.Subtotal)).Add(dec(t.Tax))
		}
		a.taxWithheld = a.taxWithheld.Add(dec(t.TaxWithheld))
		a.commission = a.commission.Add(dec(t.Commission))
		a.deliveryCharge = a.deliveryCharge.Add(dec(t.DeliveryFee))
		a.merchantDiscount = a.merchantDiscount.Add(dec(t.MerchantFundedPromotion))
		a.thirdPartyDiscount = a.thirdPartyDiscount.Add(dec(t.GrubhubFundedPromotion))
		a.customerRefunds = a.customerRefunds.Add(dec(t.CustomerRefunds))
		a.disputesWon = a.disputesWon.Add(dec(t.DisputesWon))
		a.tip = a.tip.Add(dec(t.Tip))
		a.restaurantFees = a.restaurantFees.Add(dec(t.ProcessingFee))
		a.miscellaneous = a.miscellaneous.Add(dec(t.OtherPayments))
		a.netPayout = a.netPayout.Add(dec(t.NetPayout))
	}
	return a
}

// uberEatsCountsTowardSales mirrors the platform's completion criteria:
// anything not explicitly canceled or unfulfilled counts
func uberEatsCountsTowardSales(t *domain.UberEatsTransaction) bool {
	switch strings.ToLower(strings.TrimSpace(t.OrderStatus)) {
	case "canceled", "cancelled", "unfulfilled", "failed":
		return false
	}
	return true
}

func sumAccs(accs ...statementAcc) statementAcc {
	var t statementAcc
	for _, a := range accs {
		t.salesInclTax = t.salesInclTax.Add(a.salesInclTax)
		t.salesExclTax = t.salesExclTax.Add(a.salesExclTax)
		t.unfulfilledSales = t.unfulfilledSales.Add(a.unfulfilledSales)
		t.unfulfilledRefunds = t.unfulfilledRefunds.Add(a.unfulfilledRefunds)
		t.taxOnSales = t.taxOnSales.Add(a.taxOnSales)
		t.taxWithheld = t.taxWithheld.Add(a.taxWithheld)
		t.taxRemitted = t.taxRemitted.Add(a.taxRemitted)
		t.commission = t.commission.Add(a.commission)
		t.deliveryCharge = t.deliveryCharge.Add(a.deliveryCharge)
		t.loyalty = t.loyalty.Add(a.loyalty)
		t.adSpend = t.adSpend.Add(a.adSpend)
		t.promoSpend = t.promoSpend.Add(a.promoSpend)
		t.platformMktFee = t.platformMktFee.Add(a.platformMktFee)
		t.merchantDiscount = t.merchantDiscount.Add(a.merchantDiscount)
		t.thirdPartyDiscount = t.thirdPartyDiscount.Add(a.thirdPartyDiscount)
		t.customerRefunds = t.customerRefunds.Add(a.customerRefunds)
		t.disputesWon = t.disputesWon.Add(a.disputesWon)
		t.tip = t.tip.Add(a.tip)
		t.restaurantFees = t.restaurantFees.Add(a.restaurantFees)
		t.miscellaneous = t.miscellaneous.Add(a.miscellaneous)
		t.netPayout = t.netPayout.Add(a.netPayout)
	}
	return t
}

// finalize converts an accumulator into the DTO, expressing every line as a
// percentage of sales including tax and attaching the COGS estimate
func (s *ReconciliationService) finalize(a statementAcc, platform domain.Platform) domain.PlatformStatement {
	base := a.salesInclTax

	marketingTotal := a.loyalty.Add(a.adSpend).Add(a.promoSpend).
		Add(a.platformMktFee).Add(a.merchantDiscount).Add(a.thirdPartyDiscount)

	cogs := base.Mul(s.cogsRate)
	margin := a.netPayout.Sub(cogs)

	// Unaccounted is the residual between the cash that arrived and the lines
	// the taxonomy explains; all-status payout vs sales-filtered lines makes a
	// nonzero residual expected, not a bug.
	explained := a.salesInclTax.
		Sub(a.commission).
		Sub(a.deliveryCharge).
		Sub(marketingTotal).
		Sub(a.customerRefunds).
		Sub(a.taxWithheld).
		Sub(a.restaurantFees).
		Add(a.disputesWon).
		Add(a.tip).
		Add(a.miscellaneous)
	unaccounted := a.netPayout.Sub(explained)

	othersTotal := a.tip.Add(a.restaurantFees).Add(a.miscellaneous).Add(unaccounted)

	return domain.PlatformStatement{
		Platform:           platform,
		SalesInclTax:       line(a.salesInclTax, base),
		SalesExclTax:       line(a.salesExclTax, base),
		UnfulfilledSales:   line(a.unfulfilledSales, base),
		UnfulfilledRefunds: line(a.unfulfilledRefunds, base),
		TaxOnSales:         line(a.taxOnSales, base),
		TaxWithheld:        line(a.taxWithheld, base),
		TaxRemitted:        line(a.taxRemitted, base),
		Commission:         line(a.commission, base),
		DeliveryCharge:     line(a.deliveryCharge, base),
		Marketing: domain.MarketingLines{
			Loyalty:                  line(a.loyalty, base),
			AdSpend:                  line(a.adSpend, base),
			PromoSpend:               line(a.promoSpend, base),
			PlatformMarketingFee:     line(a.platformMktFee, base),
			MerchantFundedDiscount:   line(a.merchantDiscount, base),
			ThirdPartyFundedDiscount: line(a.thirdPartyDiscount, base),
			Total:                    line(marketingTotal, base),
		},
		CustomerRefunds: line(a.customerRefunds, base),
		DisputesWon:     line(a.disputesWon, base),
		Others: domain.OtherLines{
			Tip:            line(a.tip, base),
			RestaurantFees: line(a.restaurantFees, base),
			Miscellaneous:  line(a.miscellaneous, base),
			Unaccounted:    line(unaccounted, base),
			Total:          line(othersTotal, base),
		},
		NetPayout:    line(a.netPayout, base),
		COGSEstimate: line(cogs, base),
		NetMargin:    line(margin, base),
	}
}

func line(amount, base decimal.Decimal) domain.StatementLine {
	l := domain.StatementLine{}
	l.Amount, _ = amount.Round(2).Float64()
	if !base.IsZero() {
		pct := amount.Div(base).Mul(decimal.NewFromInt(100))
		l.PctOfSales, _ = pct.Round(2).Float64()
	}
	return l
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// WriteCSV renders an income statement as CSV for export consumers
func (s *ReconciliationService) WriteCSV(stmt *domain.IncomeStatement) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Line Item", "Uber Eats", "DoorDash", "Grubhub", "Total", "% of Sales"}); err != nil {
		return nil, err
	}

	rows := []struct {
		label string
		pick  func(p *domain.PlatformStatement) domain.StatementLine
	}{
		{"Sales (incl. tax)", func(p *domain.PlatformStatement) domain.StatementLine { return p.SalesInclTax }},
		{"Sales (excl. tax)", func(p *domain.PlatformStatement) domain.StatementLine { return p.SalesExclTax }},
		{"Unfulfilled Sales", func(p *domain.PlatformStatement) domain.StatementLine { return p.UnfulfilledSales }},
		{"Unfulfilled Refunds", func(p *domain.PlatformStatement) domain.StatementLine { return p.UnfulfilledRefunds }},
		{"Tax on Sales", func(p *domain.PlatformStatement) domain.StatementLine { return p.TaxOnSales }},
		{"Tax Withheld", func(p *domain.PlatformStatement) domain.StatementLine { return p.TaxWithheld }},
		{"Tax Remitted by Platform", func(p *domain.PlatformStatement) domain.StatementLine { return p.TaxRemitted }},
		{"Commission", func(p *domain.PlatformStatement) domain.StatementLine { return p.Commission }},
		{"Delivery Charge", func(p *domain.PlatformStatement) domain.StatementLine { return p.DeliveryCharge }},
		{"Marketing: Loyalty", func(p *domain.PlatformStatement) domain.StatementLine { return p.Marketing.Loyalty }},
		{"Marketing: Ad Spend", func(p *domain.PlatformStatement) domain.StatementLine { return p.Marketing.AdSpend }},
		{"Marketing: Promo Spend", func(p *domain.PlatformStatement) domain.StatementLine { return p.Marketing.PromoSpend }},
		{"Marketing: Platform Fee", func(p *domain.PlatformStatement) domain.StatementLine { return p.Marketing.PlatformMarketingFee }},
		{"Marketing: Merchant Funded Discount", func(p *domain.PlatformStatement) domain.StatementLine { return p.Marketing.MerchantFundedDiscount }},
		{"Marketing: Third Party Funded Discount", func(p *domain.PlatformStatement) domain.StatementLine { return p.Marketing.ThirdPartyFundedDiscount }},
		{"Marketing Total", func(p *domain.PlatformStatement) domain.StatementLine { return p.Marketing.Total }},
		{"Customer Refunds", func(p *domain.PlatformStatement) domain.StatementLine { return p.CustomerRefunds }},
		{"Disputes Won", func(p *domain.PlatformStatement) domain.StatementLine { return p.DisputesWon }},
		{"Others: Tip", func(p *domain.PlatformStatement) domain.StatementLine { return p.Others.Tip }},
		{"Others: Restaurant Fees", func(p *domain.PlatformStatement) domain.StatementLine { return p.Others.RestaurantFees }},
		{"Others: Miscellaneous", func(p *domain.PlatformStatement) domain.StatementLine { return p.Others.Miscellaneous }},
		{"Others: Unaccounted", func(p *domain.PlatformStatement) domain.StatementLine { return p.Others.Unaccounted }},
		{"Others Total", func(p *domain.PlatformStatement) domain.StatementLine { return p.Others.Total }},
		{"Net Payout", func(p *domain.PlatformStatement) domain.StatementLine { return p.NetPayout }},
		{"COGS Estimate", func(p *domain.PlatformStatement) domain.StatementLine { return p.COGSEstimate }},
		{"Net Margin", func(p *domain.PlatformStatement) domain.StatementLine { return p.NetMargin }},
	}

	for _, row := range rows {
		total := row.pick(&stmt.Totals)
		record := []string{
			row.label,
			money(row.pick(&stmt.UberEats).Amount),
			money(row.pick(&stmt.DoorDash).Amount),
			money(row.pick(&stmt.Grubhub).Amount),
			money(total.Amount),
			fmt.Sprintf("%.2f%%", total.PctOfSales),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
