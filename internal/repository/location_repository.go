package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"gorm.io/gorm"
)

type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) Create(ctx context.Context, location *domain.Location) error {
	return r.db.WithContext(ctx).Create(location).Error
}

func (r *LocationRepository) Update(ctx context.Context, location *domain.Location) error {
	return r.db.WithContext(ctx).Save(location).Error
}

func (r *LocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Location{}, "id = ?", id).Error
}

func (r *LocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	var location domain.Location
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// ListByClient returns all of a client's locations, bucket included
func (r *LocationRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Location, error) {
	var locations []domain.Location
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("name ASC").
		Find(&locations).Error
	return locations, err
}

// LocationFilters narrows location listing
type LocationFilters struct {
	Tag      string
	Verified *bool
}

func (r *LocationRepository) List(ctx context.Context, clientID uuid.UUID, filters *LocationFilters) ([]domain.Location, error) {
	query := r.db.WithContext(ctx).Where("client_id = ?", clientID)
	if filters != nil {
		if filters.Tag != "" {
			query = query.Where("tag = ?", filters.Tag)
		}
		if filters.Verified != nil {
			query = query.Where("verified = ?", *filters.Verified)
		}
	}
	var locations []domain.Location
	err := query.Order("name ASC").Find(&locations).Error
	return locations, err
}

// GetByStoreCode finds a client's location by master store code; nil when absent
func (r *LocationRepository) GetByStoreCode(ctx context.Context, clientID uuid.UUID, storeCode string) (*domain.Location, error) {
	var location domain.Location
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND store_code = ?", clientID, storeCode).
		First(&location).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// GetUnmappedBucket returns the client's bucket location; nil when absent
func (r *LocationRepository) GetUnmappedBucket(ctx context.Context, clientID uuid.UUID) (*domain.Location, error) {
	var location domain.Location
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND tag = ?", clientID, domain.LocationTagUnmappedBucket).
		First(&location).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}
