package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"go.uber.org/zap"
)

// FinancialsService maintains the cached per-location weekly rollups and
// renders them for export. Rollups are fully derivable from transactions, so
// regeneration is always wholesale per client.
type FinancialsService struct {
	txnRepo    *repository.TransactionRepository
	weeklyRepo *repository.WeeklyFinancialRepository
	cogsRate   float64
	logger     *zap.Logger
}

func NewFinancialsService(
	txnRepo *repository.TransactionRepository,
	weeklyRepo *repository.WeeklyFinancialRepository,
	cogsRate float64,
	logger *zap.Logger,
) *FinancialsService {
	if cogsRate <= 0 || cogsRate >= 1 {
		cogsRate = DefaultCOGSRate
	}
	return &FinancialsService{
		txnRepo:    txnRepo,
		weeklyRepo: weeklyRepo,
		cogsRate:   cogsRate,
		logger:     logger,
	}
}

type weeklyKey struct {
	locationID uuid.UUID
	weekStart  time.Time
}

type weeklyAcc struct {
	sales          float64
	marketingSales float64
	marketingSpend float64
	payout         float64
}

// Regenerate recomputes every weekly rollup row for a client from its raw
// transactions and swaps the cache wholesale
func (s *FinancialsService) Regenerate(ctx context.Context, clientID uuid.UUID) (int, error) {
	if clientID == uuid.Nil {
		return 0, ErrClientRequired
	}

	filter := domain.MetricsFilter{ClientID: clientID, IncludeUnmapped: true}
	accs := make(map[weeklyKey]*weeklyAcc)

	fold := func(locationID *uuid.UUID, orderDate time.Time, row metricRow) {
		key := weeklyKey{locationID: deref(locationID), weekStart: domain.WeekStartOf(orderDate)}
		acc, ok := accs[key]
		if !ok {
			acc = &weeklyAcc{}
			accs[key] = acc
		}
		acc.sales += row.sales
		if row.marketing {
			acc.marketingSales += row.sales
		}
		acc.marketingSpend += row.adSpend + row.offerValue
		acc.payout += row.payout
	}

	ue, err := s.txnRepo.ListUberEats(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to load uber eats transactions: %w", err)
	}
	for i := range ue {
		fold(ue[i].LocationID, ue[i].OrderDate, uberEatsRow(&ue[i]))
	}

	dd, err := s.txnRepo.ListDoorDash(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to load doordash transactions: %w", err)
	}
	for i := range dd {
		fold(dd[i].LocationID, dd[i].OrderDate, doorDashRow(&dd[i]))
	}

	gh, err := s.txnRepo.ListGrubhub(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to load grubhub transactions: %w", err)
	}
	for i := range gh {
		fold(gh[i].LocationID, gh[i].OrderDate, grubhubRow(&gh[i]))
	}

	rows := make([]domain.WeeklyFinancial, 0, len(accs))
	for key, acc := range accs {
		row := domain.WeeklyFinancial{
			LocationID:     key.locationID,
			WeekStart:      key.weekStart,
			Sales:          acc.sales,
			MarketingSales: acc.marketingSales,
			MarketingSpend: acc.marketingSpend,
			Payout:         acc.payout,
		}
		if acc.sales > 0 {
			row.MarketingPct = acc.marketingSales / acc.sales * 100
			row.PayoutPct = acc.payout / acc.sales * 100
		}
		if acc.marketingSpend > 0 {
			row.ROAS = acc.marketingSales / acc.marketingSpend
		}
		row.PayoutAfterCOGS = acc.payout - s.cogsRate*acc.sales
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].WeekStart.Equal(rows[j].WeekStart) {
			return rows[i].WeekStart.Before(rows[j].WeekStart)
		}
		return rows[i].LocationID.String() < rows[j].LocationID.String()
	})

	if err := s.weeklyRepo.ReplaceForClient(ctx, clientID, rows); err != nil {
		return 0, fmt.Errorf("failed to replace weekly rollups: %w", err)
	}

	s.logger.Info("weekly financials regenerated",
		zap.String("client_id", clientID.String()),
		zap.Int("rows", len(rows)),
	)
	return len(rows), nil
}

// List returns the cached weekly rollup rows for a client
func (s *FinancialsService) List(ctx context.Context, clientID uuid.UUID, filters *repository.WeeklyFinancialFilters) ([]domain.WeeklyFinancialDTO, error) {
	if clientID == uuid.Nil {
		return nil, ErrClientRequired
	}
	rows, err := s.weeklyRepo.List(ctx, clientID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly financials: %w", err)
	}

	dtos := make([]domain.WeeklyFinancialDTO, len(rows))
	for i := range rows {
		dtos[i] = toWeeklyDTO(&rows[i])
	}
	return dtos, nil
}

func toWeeklyDTO(row *domain.WeeklyFinancial) domain.WeeklyFinancialDTO {
	dto := domain.WeeklyFinancialDTO{
		LocationID:      row.LocationID,
		WeekStart:       row.WeekStart,
		Sales:           row.Sales,
		MarketingSales:  row.MarketingSales,
		MarketingSpend:  row.MarketingSpend,
		MarketingPct:    row.MarketingPct,
		ROAS:            row.ROAS,
		Payout:          row.Payout,
		PayoutPct:       row.PayoutPct,
		PayoutAfterCOGS: row.PayoutAfterCOGS,
	}
	if row.Location != nil {
		dto.LocationName = row.Location.Name
	}
	return dto
}

// ExportWeeklyCSV renders the weekly rollup as CSV, one row per location-week
func (s *FinancialsService) ExportWeeklyCSV(ctx context.Context, clientID uuid.UUID, filters *repository.WeeklyFinancialFilters) ([]byte, error) {
	dtos, err := s.List(ctx, clientID, filters)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"Week Start", "Location", "Sales", "Marketing Sales", "Marketing Spend",
		"Marketing %", "ROAS", "Payout", "Payout %", "Payout After COGS",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, d := range dtos {
		record := []string{
			d.WeekStart.Format("2006-01-02"),
			d.LocationName,
			money(d.Sales),
			money(d.MarketingSales),
			money(d.MarketingSpend),
			fmt.Sprintf("%.2f", d.MarketingPct),
			fmt.Sprintf("%.2f", d.ROAS),
			money(d.Payout),
			fmt.Sprintf("%.2f", d.PayoutPct),
			money(d.PayoutAfterCOGS),
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

// ExportOverviewCSV renders the week-by-week portfolio totals as CSV, summing
// the cached per-location rows and recomputing the derived percentages from
// the summed bases
func (s *FinancialsService) ExportOverviewCSV(ctx context.Context, clientID uuid.UUID, filters *repository.WeeklyFinancialFilters) ([]byte, error) {
	if clientID == uuid.Nil {
		return nil, ErrClientRequired
	}
	rows, err := s.weeklyRepo.List(ctx, clientID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly financials: %w", err)
	}

	byWeek := make(map[time.Time]*weeklyAcc)
	var weeks []time.Time
	for i := range rows {
		acc, ok := byWeek[rows[i].WeekStart]
		if !ok {
			acc = &weeklyAcc{}
			byWeek[rows[i].WeekStart] = acc
			weeks = append(weeks, rows[i].WeekStart)
		}
		acc.sales += rows[i].Sales
		acc.marketingSales += rows[i].MarketingSales
		acc.marketingSpend += rows[i].MarketingSpend
		acc.payout += rows[i].Payout
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"Week Start", "Sales", "Marketing Sales", "Marketing Spend",
		"ROAS", "Payout", "Payout %", "Payout After COGS",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, week := range weeks {
		acc := byWeek[week]
		roas, payoutPct := 0.0, 0.0
		if acc.marketingSpend > 0 {
			roas = acc.marketingSales / acc.marketingSpend
		}
		if acc.sales > 0 {
			payoutPct = acc.payout / acc.sales * 100
		}
		record := []string{
			week.Format("2006-01-02"),
			money(acc.sales),
			money(acc.marketingSales),
			money(acc.marketingSpend),
			fmt.Sprintf("%.2f", roas),
			money(acc.payout),
			fmt.Sprintf("%.2f", payoutPct),
			money(acc.payout - s.cogsRate*acc.sales),
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
