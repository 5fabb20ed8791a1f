package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepository persists the three platform transaction variants.
// Writes are upsert-by-natural-key so re-ingesting an identical export never
// creates duplicate transactions.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// UpsertUberEats inserts or replaces transactions keyed by (client, workflow
// id). Returns how many rows were newly created vs updated.
func (r *TransactionRepository) UpsertUberEats(ctx context.Context, clientID uuid.UUID, txns []domain.UberEatsTransaction) (created, updated int, err error) {
	if len(txns) == 0 {
		return 0, 0, nil
	}

	keys := make([]string, len(txns))
	for i := range txns {
		txns[i].ClientID = clientID
		keys[i] = txns[i].WorkflowID
	}

	var existing []string
	err = r.db.WithContext(ctx).Model(&domain.UberEatsTransaction{}).
		Where("client_id = ? AND workflow_id IN ?", clientID, keys).
		Pluck("workflow_id", &existing).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to check existing transactions: %w", err)
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "workflow_id"}},
		UpdateAll: true,
	}).CreateInBatches(txns, 500).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert transactions: %w", err)
	}

	updated = len(existing)
	created = len(txns) - updated
	return created, updated, nil
}

// UpsertDoorDash inserts or replaces transactions keyed by (client, transaction id)
func (r *TransactionRepository) UpsertDoorDash(ctx context.Context, clientID uuid.UUID, txns []domain.DoorDashTransaction) (created, updated int, err error) {
	if len(txns) == 0 {
		return 0, 0, nil
	}

	keys := make([]string, len(txns))
	for i := range txns {
		txns[i].ClientID = clientID
		keys[i] = txns[i].TransactionID
	}

	var existing []string
	err = r.db.WithContext(ctx).Model(&domain.DoorDashTransaction{}).
		Where("client_id = ? AND transaction_id IN ?", clientID, keys).
		Pluck("transaction_id", &existing).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to check existing transactions: %w", err)
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "transaction_id"}},
		UpdateAll: true,
	}).CreateInBatches(txns, 500).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert transactions: %w", err)
	}

	updated = len(existing)
	created = len(txns) - updated
	return created, updated, nil
}

// UpsertGrubhub inserts or replaces transactions keyed by (client, transaction id)
func (r *TransactionRepository) UpsertGrubhub(ctx context.Context, clientID uuid.UUID, txns []domain.GrubhubTransaction) (created, updated int, err error) {
	if len(txns) == 0 {
		return 0, 0, nil
	}

	keys := make([]string, len(txns))
	for i := range txns {
		txns[i].ClientID = clientID
		keys[i] = txns[i].TransactionID
	}

	var existing []string
	err = r.db.WithContext(ctx).Model(&domain.GrubhubTransaction{}).
		Where("client_id = ? AND transaction_id IN ?", clientID, keys).
		Pluck("transaction_id", &existing).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to check existing transactions: %w", err)
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "transaction_id"}},
		UpdateAll: true,
	}).CreateInBatches(txns, 500).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert transactions: %w", err)
	}

	updated = len(existing)
	created = len(txns) - updated
	return created, updated, nil
}

// applyFilter narrows a transaction query by the common metric filters
func applyFilter(query *gorm.DB, filter domain.MetricsFilter) *gorm.DB {
	query = query.Where("client_id = ?", filter.ClientID)
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	if filter.WeekStart != nil {
		query = query.Where("order_date >= ?", *filter.WeekStart)
	}
	if filter.WeekEnd != nil {
		// week end is the start of the last calendar week in range
		query = query.Where("order_date < ?", filter.WeekEnd.AddDate(0, 0, 7))
	}
	return query
}

func (r *TransactionRepository) ListUberEats(ctx context.Context, filter domain.MetricsFilter) ([]domain.UberEatsTransaction, error) {
	var txns []domain.UberEatsTransaction
	err := applyFilter(r.db.WithContext(ctx).Model(&domain.UberEatsTransaction{}), filter).
		Order("order_date ASC").Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) ListDoorDash(ctx context.Context, filter domain.MetricsFilter) ([]domain.DoorDashTransaction, error) {
	var txns []domain.DoorDashTransaction
	err := applyFilter(r.db.WithContext(ctx).Model(&domain.DoorDashTransaction{}), filter).
		Order("order_date ASC").Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) ListGrubhub(ctx context.Context, filter domain.MetricsFilter) ([]domain.GrubhubTransaction, error) {
	var txns []domain.GrubhubTransaction
	err := applyFilter(r.db.WithContext(ctx).Model(&domain.GrubhubTransaction{}), filter).
		Order("order_date ASC").Find(&txns).Error
	return txns, err
}

// PurgeRange deletes one platform's transactions inside [from, to] for
// corrective re-import. The caller must scope it to a client.
func (r *TransactionRepository) PurgeRange(ctx context.Context, clientID uuid.UUID, platform domain.Platform, from, to time.Time) (int64, error) {
	model, err := modelFor(platform)
	if err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).
		Where("client_id = ? AND order_date >= ? AND order_date <= ?", clientID, from, to).
		Delete(model)
	return result.RowsAffected, result.Error
}

// ReassignLocation moves all transactions from one location to another across
// every platform table. Used by location merge and bucket drains.
func (r *TransactionRepository) ReassignLocation(ctx context.Context, clientID, fromLocationID, toLocationID uuid.UUID) error {
	for _, platform := range domain.Platforms {
		model, err := modelFor(platform)
		if err != nil {
			return err
		}
		err = r.db.WithContext(ctx).Model(model).
			Where("client_id = ? AND location_id = ?", clientID, fromLocationID).
			Update("location_id", toLocationID).Error
		if err != nil {
			return fmt.Errorf("failed to reassign %s transactions: %w", platform, err)
		}
	}
	return nil
}

// SetLocation repairs the location id on specific transactions. Only the
// offline backfill path uses this; live ingestion never rewrites locations.
func (r *TransactionRepository) SetLocation(ctx context.Context, platform domain.Platform, ids []uuid.UUID, locationID uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	model, err := modelFor(platform)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(model).
		Where("id IN ?", ids).
		Update("location_id", locationID).Error
}

func modelFor(platform domain.Platform) (interface{}, error) {
	switch platform {
	case domain.PlatformUberEats:
		return &domain.UberEatsTransaction{}, nil
	case domain.PlatformDoorDash:
		return &domain.DoorDashTransaction{}, nil
	case domain.PlatformGrubhub:
		return &domain.GrubhubTransaction{}, nil
	}
	return nil, fmt.Errorf("unknown platform: %q", platform)
}
