package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"gorm.io/gorm"
)

type WeeklyFinancialRepository struct {
	db *gorm.DB
}

func NewWeeklyFinancialRepository(db *gorm.DB) *WeeklyFinancialRepository {
	return &WeeklyFinancialRepository{db: db}
}

// ReplaceForClient swaps out the client's entire weekly rollup inside one
// database transaction: delete everything, insert the freshly computed rows.
// Wholesale replacement guarantees no stale partial state after corrections.
func (r *WeeklyFinancialRepository) ReplaceForClient(ctx context.Context, clientID uuid.UUID, rows []domain.WeeklyFinancial) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", clientID).Delete(&domain.WeeklyFinancial{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].ClientID = clientID
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

// WeeklyFinancialFilters narrows weekly rollup listing
type WeeklyFinancialFilters struct {
	LocationID *uuid.UUID
	WeekStart  *time.Time
	WeekEnd    *time.Time
}

func (r *WeeklyFinancialRepository) List(ctx context.Context, clientID uuid.UUID, filters *WeeklyFinancialFilters) ([]domain.WeeklyFinancial, error) {
	query := r.db.WithContext(ctx).
		Preload("Location").
		Where("client_id = ?", clientID)
	if filters != nil {
		if filters.LocationID != nil {
			query = query.Where("location_id = ?", *filters.LocationID)
		}
		if filters.WeekStart != nil {
			query = query.Where("week_start >= ?", *filters.WeekStart)
		}
		if filters.WeekEnd != nil {
			query = query.Where("week_start <= ?", *filters.WeekEnd)
		}
	}
	var rows []domain.WeeklyFinancial
	err := query.Order("week_start ASC").Find(&rows).Error
	return rows, err
}
