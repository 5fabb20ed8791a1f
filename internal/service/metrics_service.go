package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"go.uber.org/zap"
)

// MetricsService computes platform, portfolio and per-location financial and
// marketing metrics from raw transactions for arbitrary filter combinations.
type MetricsService struct {
	txnRepo      *repository.TransactionRepository
	locationRepo *repository.LocationRepository
	logger       *zap.Logger
}

func NewMetricsService(
	txnRepo *repository.TransactionRepository,
	locationRepo *repository.LocationRepository,
	logger *zap.Logger,
) *MetricsService {
	return &MetricsService{
		txnRepo:      txnRepo,
		locationRepo: locationRepo,
		logger:       logger,
	}
}

// metricRow is the platform-neutral projection of one transaction used by the
// aggregator. Sales-derived fields honor the platform's inclusion criteria;
// payout is always carried for cash reconciliation.
type metricRow struct {
	platform   domain.Platform
	locationID uuid.UUID
	isOrder    bool
	sales      float64
	marketing  bool
	adSpend    float64
	offerValue float64
	payout     float64
}

// Overview returns the per-platform rollup plus blended portfolio totals. When
// the filter carries a full week window, week-over-week deltas against the
// preceding window of equal length are included.
func (s *MetricsService) Overview(ctx context.Context, filter domain.MetricsFilter) (*domain.OverviewMetrics, error) {
	rows, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	overview := &domain.OverviewMetrics{
		Platforms: make([]domain.PlatformMetrics, 0, len(domain.Platforms)),
	}
	for _, platform := range domain.Platforms {
		if filter.Platform != nil && *filter.Platform != platform {
			continue
		}
		m := aggregateRows(rows, platform)
		m.Platform = platform
		overview.Platforms = append(overview.Platforms, m)
	}
	overview.Totals = blend(overview.Platforms)

	if filter.WeekStart != nil && filter.WeekEnd != nil {
		prev, err := s.previousTotals(ctx, filter)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			overview.WeekOverWeek = compareTotals(overview.Totals, *prev)
		}
	}

	return overview, nil
}

// ByLocation returns per-location metric rollups with per-platform breakdowns
func (s *MetricsService) ByLocation(ctx context.Context, filter domain.MetricsFilter) ([]domain.LocationMetrics, error) {
	rows, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}
	locations, err := s.locationRepo.ListByClient(ctx, filter.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	byID := make(map[uuid.UUID]*domain.Location, len(locations))
	for i := range locations {
		byID[locations[i].ID] = &locations[i]
	}

	grouped := make(map[uuid.UUID][]metricRow)
	var order []uuid.UUID
	for _, row := range rows {
		if _, ok := grouped[row.locationID]; !ok {
			order = append(order, row.locationID)
		}
		grouped[row.locationID] = append(grouped[row.locationID], row)
	}

	result := make([]domain.LocationMetrics, 0, len(order))
	for _, locID := range order {
		lm := domain.LocationMetrics{LocationID: locID}
		if loc, ok := byID[locID]; ok {
			lm.LocationName = loc.Name
			lm.StoreCode = loc.StoreCode
			lm.Tag = loc.Tag
		}
		for _, platform := range domain.Platforms {
			m := aggregateRows(grouped[locID], platform)
			if m.Orders == 0 && m.NetPayout == 0 {
				continue
			}
			m.Platform = platform
			lm.Platforms = append(lm.Platforms, m)
		}
		lm.Totals = blend(lm.Platforms)
		result = append(result, lm)
	}
	return result, nil
}

// load fetches the filtered transactions for every platform in scope and
// projects them onto metric rows. An absent client simply yields no rows.
func (s *MetricsService) load(ctx context.Context, filter domain.MetricsFilter) ([]metricRow, error) {
	var rows []metricRow

	include := func(p domain.Platform) bool {
		return filter.Platform == nil || *filter.Platform == p
	}

	if include(domain.PlatformUberEats) {
		txns, err := s.txnRepo.ListUberEats(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to load uber eats transactions: %w", err)
		}
		for i := range txns {
			rows = append(rows, uberEatsRow(&txns[i]))
		}
	}
	if include(domain.PlatformDoorDash) {
		txns, err := s.txnRepo.ListDoorDash(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to load doordash transactions: %w", err)
		}
		for i := range txns {
			rows = append(rows, doorDashRow(&txns[i]))
		}
	}
	if include(domain.PlatformGrubhub) {
		txns, err := s.txnRepo.ListGrubhub(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to load grubhub transactions: %w", err)
		}
		for i := range txns {
			rows = append(rows, grubhubRow(&txns[i]))
		}
	}

	if !filter.IncludeUnmapped {
		rows, err := s.excludeBucket(ctx, filter.ClientID, rows)
		return rows, err
	}
	return rows, nil
}

// excludeBucket drops rows assigned to the client's unmapped bucket
func (s *MetricsService) excludeBucket(ctx context.Context, clientID uuid.UUID, rows []metricRow) ([]metricRow, error) {
	bucket, err := s.locationRepo.GetUnmappedBucket(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unmapped bucket: %w", err)
	}
	if bucket == nil {
		return rows, nil
	}
	out := rows[:0]
	for _, row := range rows {
		if row.locationID != bucket.ID {
			out = append(out, row)
		}
	}
	return out, nil
}

func uberEatsRow(t *domain.UberEatsTransaction) metricRow {
	return metricRow{
		platform:   domain.PlatformUberEats,
		locationID: deref(t.LocationID),
		isOrder:    true,
		sales:      t.SalesExclTax + t.Tax,
		marketing:  t.MarketingAdjustment != 0,
		adSpend:    abs(t.AdSpend),
		offerValue: abs(t.OfferSpend),
		payout:     t.NetPayout,
	}
}

func doorDashRow(t *domain.DoorDashTransaction) metricRow {
	row := metricRow{
		platform:   domain.PlatformDoorDash,
		locationID: deref(t.LocationID),
		adSpend:    abs(t.AdSpend),
		offerValue: abs(t.PromotionSpend),
		payout:     t.NetPayout,
	}
	// Only Marketplace-channel completed orders count toward sales and
	// marketing metrics; payout still counts for reconciliation.
	if t.CountsTowardSales() {
		row.isOrder = true
		row.sales = t.Subtotal + t.Tax
		row.marketing = t.MarketingSpend() != 0
	}
	return row
}

func grubhubRow(t *domain.GrubhubTransaction) metricRow {
	row := metricRow{
		platform:   domain.PlatformGrubhub,
		locationID: deref(t.LocationID),
		offerValue: abs(t.MerchantFundedPromotion),
		payout:     t.NetPayout,
	}
	if isGrubhubOrder(t.TransactionType) {
		row.isOrder = true
		row.sales = t.Subtotal + t.Tax
		row.marketing = t.MerchantFundedPromotion != 0
	}
	return row
}

// isGrubhubOrder reports whether a transaction type represents an order rather
// than an adjustment or fee line
func isGrubhubOrder(transactionType string) bool {
	switch strings.ToLower(strings.TrimSpace(transactionType)) {
	case "", "order", "prepaid order", "delivery order":
		return true
	}
	return false
}

// aggregateRows folds one platform's metric rows into a PlatformMetrics.
// Marketing + organic always partition totals exactly.
func aggregateRows(rows []metricRow, platform domain.Platform) domain.PlatformMetrics {
	var m domain.PlatformMetrics
	for _, row := range rows {
		if row.platform != platform {
			continue
		}
		if row.isOrder {
			m.Orders++
			m.TotalSales += row.sales
			if row.marketing {
				m.MarketingOrders++
				m.MarketingSales += row.sales
			}
		}
		m.AdSpend += row.adSpend
		m.OfferValue += row.offerValue
		m.NetPayout += row.payout
	}
	finalizeMetrics(&m)
	return m
}

// blend sums platform metrics into portfolio totals, recomputing blended ROAS
// and payout percentage from the summed numerators and denominators. Averaging
// the per-platform percentages would distort the blend.
func blend(platforms []domain.PlatformMetrics) domain.PlatformMetrics {
	var t domain.PlatformMetrics
	for _, m := range platforms {
		t.Orders += m.Orders
		t.MarketingOrders += m.MarketingOrders
		t.TotalSales += m.TotalSales
		t.MarketingSales += m.MarketingSales
		t.AdSpend += m.AdSpend
		t.OfferValue += m.OfferValue
		t.NetPayout += m.NetPayout
	}
	finalizeMetrics(&t)
	return t
}

// finalizeMetrics fills the derived fields from the summed bases
func finalizeMetrics(m *domain.PlatformMetrics) {
	m.OrganicOrders = m.Orders - m.MarketingOrders
	m.OrganicSales = m.TotalSales - m.MarketingSales
	m.MarketingInvestment = m.AdSpend + m.OfferValue
	if m.Orders > 0 {
		m.AvgOrderValue = m.TotalSales / float64(m.Orders)
	}
	if m.MarketingInvestment > 0 {
		m.ROAS = m.MarketingSales / m.MarketingInvestment
	}
	if m.TotalSales > 0 {
		m.PayoutPct = m.NetPayout / m.TotalSales * 100
	}
}

// previousTotals computes the blended totals for the window immediately
// preceding the filter's window, for week-over-week comparison
func (s *MetricsService) previousTotals(ctx context.Context, filter domain.MetricsFilter) (*domain.PlatformMetrics, error) {
	length := filter.WeekEnd.Sub(*filter.WeekStart) + 7*24*time.Hour
	prevEnd := filter.WeekStart.Add(-7 * 24 * time.Hour)
	prevStart := filter.WeekStart.Add(-length)

	prevFilter := filter
	prevFilter.WeekStart = &prevStart
	prevFilter.WeekEnd = &prevEnd

	rows, err := s.load(ctx, prevFilter)
	if err != nil {
		return nil, err
	}

	platforms := make([]domain.PlatformMetrics, 0, len(domain.Platforms))
	for _, platform := range domain.Platforms {
		if filter.Platform != nil && *filter.Platform != platform {
			continue
		}
		platforms = append(platforms, aggregateRows(rows, platform))
	}
	totals := blend(platforms)
	return &totals, nil
}

// compareTotals computes percentage deltas; nil where the previous value is
// zero, which callers must render as "no data" rather than 0% or infinity
func compareTotals(cur, prev domain.PlatformMetrics) *domain.WeekOverWeek {
	return &domain.WeekOverWeek{
		Orders:         pctChange(float64(cur.Orders), float64(prev.Orders)),
		TotalSales:     pctChange(cur.TotalSales, prev.TotalSales),
		MarketingSales: pctChange(cur.MarketingSales, prev.MarketingSales),
		MarketingSpend: pctChange(cur.MarketingInvestment, prev.MarketingInvestment),
		ROAS:           pctChange(cur.ROAS, prev.ROAS),
		NetPayout:      pctChange(cur.NetPayout, prev.NetPayout),
	}
}

func pctChange(cur, prev float64) *float64 {
	if prev == 0 {
		return nil
	}
	v := (cur - prev) / prev * 100
	return &v
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
