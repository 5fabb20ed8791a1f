package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/platemetrics/delivery-api/internal/resolver"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// MergeSuggestionThreshold is the minimum normalized name similarity for a
// merge suggestion. Suggestions are advisory; nothing merges automatically.
const MergeSuggestionThreshold = 0.90

// Master list column positions (fixed-layout feed)
const (
	colStatus = iota
	colName
	colStoreCode
	colPlatformKey
	colAddress
	colCity
	colState
	colZip
	masterColumns
)

// LocationService manages canonical locations: master-list import, merges,
// and advisory merge suggestions.
type LocationService struct {
	locationRepo *repository.LocationRepository
	txnRepo      *repository.TransactionRepository
	logger       *zap.Logger
}

func NewLocationService(
	locationRepo *repository.LocationRepository,
	txnRepo *repository.TransactionRepository,
	logger *zap.Logger,
) *LocationService {
	return &LocationService{
		locationRepo: locationRepo,
		txnRepo:      txnRepo,
		logger:       logger,
	}
}

// ImportMaster imports the authoritative master-location list for a client.
// This is the only path that creates verified canonical locations. The feed is
// fixed-position tabular data (status, name, store code, platform key, address,
// city, state, zip) and may arrive as CSV or as an .xlsx workbook.
func (s *LocationService) ImportMaster(ctx context.Context, clientID uuid.UUID, filename string, data []byte) (*domain.MasterImportSummary, error) {
	if clientID == uuid.Nil {
		return nil, ErrClientRequired
	}

	rows, err := readMasterRows(filename, data)
	if err != nil {
		return nil, err
	}

	summary := &domain.MasterImportSummary{}
	for i, row := range rows {
		if i == 0 && isMasterHeader(row) {
			continue
		}
		summary.Total++

		row = padRow(row, masterColumns)
		storeCode := strings.TrimSpace(row[colStoreCode])
		if storeCode == "" {
			// Ambiguous row: without a store code there is nothing to key on
			summary.Skipped++
			continue
		}

		existing, err := s.locationRepo.GetByStoreCode(ctx, clientID, storeCode)
		if err != nil {
			return nil, fmt.Errorf("failed to look up store code %q: %w", storeCode, err)
		}

		if existing != nil {
			applyMasterRow(existing, row)
			if err := s.locationRepo.Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("failed to update location %q: %w", storeCode, err)
			}
			summary.Updated++
			continue
		}

		location := &domain.Location{
			ClientID:  clientID,
			StoreCode: storeCode,
			Verified:  true,
		}
		applyMasterRow(location, row)
		if err := s.locationRepo.Create(ctx, location); err != nil {
			return nil, fmt.Errorf("failed to create location %q: %w", storeCode, err)
		}
		summary.Created++
	}

	s.logger.Info("master location list imported",
		zap.String("client_id", clientID.String()),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("total", summary.Total),
	)
	return summary, nil
}

// applyMasterRow copies the master feed's identity fields onto a location.
// Platform aliases already learned from exports are left alone except the
// platform matching key, which the master list owns.
func applyMasterRow(location *domain.Location, row []string) {
	if name := strings.TrimSpace(row[colName]); name != "" {
		location.Name = name
	}
	if key := strings.TrimSpace(row[colPlatformKey]); key != "" {
		location.DoorDashMerchantKey = key
	}
	location.Address = strings.TrimSpace(row[colAddress])
	location.City = strings.TrimSpace(row[colCity])
	location.State = strings.TrimSpace(row[colState])
	location.Zip = strings.TrimSpace(row[colZip])
	// Uber Eats labels follow the store code convention
	if location.UberEatsLabel == "" {
		location.UberEatsLabel = location.StoreCode
	}
}

func isMasterHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(row[0]))
	return first == "status" || first == "store status"
}

func padRow(row []string, width int) []string {
	for len(row) < width {
		row = append(row, "")
	}
	return row
}

// readMasterRows loads the raw tabular rows from a CSV buffer or an .xlsx
// workbook (first sheet)
func readMasterRows(filename string, data []byte) ([][]string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") || bytes.HasPrefix(data, []byte("PK")) {
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
		}
		return rows, nil
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse master csv: %w", err)
	}
	return rows, nil
}

func (s *LocationService) List(ctx context.Context, clientID uuid.UUID, filters *repository.LocationFilters) ([]domain.LocationDTO, error) {
	locations, err := s.locationRepo.List(ctx, clientID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	dtos := make([]domain.LocationDTO, len(locations))
	for i := range locations {
		dtos[i] = domain.ToLocationDTO(&locations[i])
	}
	return dtos, nil
}

func (s *LocationService) GetByID(ctx context.Context, id uuid.UUID) (*domain.LocationDTO, error) {
	location, err := s.locationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	dto := domain.ToLocationDTO(location)
	return &dto, nil
}

// Merge reassigns every transaction from the source location to the target,
// then deletes the source. The two must belong to the same client.
func (s *LocationService) Merge(ctx context.Context, sourceID, targetID uuid.UUID) error {
	if sourceID == targetID {
		return fmt.Errorf("%w: cannot merge a location into itself", ErrInvalidInput)
	}

	source, err := s.locationRepo.GetByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to get source location: %w", err)
	}
	target, err := s.locationRepo.GetByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to get target location: %w", err)
	}
	if source.ClientID != target.ClientID {
		return fmt.Errorf("%w: locations belong to different clients", ErrInvalidInput)
	}

	if err := s.txnRepo.ReassignLocation(ctx, source.ClientID, sourceID, targetID); err != nil {
		return err
	}
	if err := s.locationRepo.Delete(ctx, sourceID); err != nil {
		return fmt.Errorf("failed to delete merged location: %w", err)
	}

	s.logger.Info("locations merged",
		zap.String("client_id", source.ClientID.String()),
		zap.String("source", source.Name),
		zap.String("target", target.Name),
	)
	return nil
}

// Delete removes a location after reassigning its transactions to the client's
// unmapped bucket, so no transaction is orphaned
func (s *LocationService) Delete(ctx context.Context, id uuid.UUID) error {
	location, err := s.locationRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get location: %w", err)
	}
	if location.IsUnmappedBucket() {
		return ErrCannotDeleteBucket
	}

	bucket, err := s.locationRepo.GetUnmappedBucket(ctx, location.ClientID)
	if err != nil {
		return fmt.Errorf("failed to get unmapped bucket: %w", err)
	}
	if bucket == nil {
		bucket = &domain.Location{
			ClientID: location.ClientID,
			Name:     domain.UnmappedBucketName,
			Tag:      domain.LocationTagUnmappedBucket,
		}
		if err := s.locationRepo.Create(ctx, bucket); err != nil {
			return fmt.Errorf("failed to create unmapped bucket: %w", err)
		}
	}

	if err := s.txnRepo.ReassignLocation(ctx, location.ClientID, id, bucket.ID); err != nil {
		return err
	}
	return s.locationRepo.Delete(ctx, id)
}

// MergeSuggestions pairs locations whose normalized names clear the similarity
// threshold. Advisory only; the resolver never acts on these.
func (s *LocationService) MergeSuggestions(ctx context.Context, clientID uuid.UUID) ([]domain.MergeSuggestion, error) {
	locations, err := s.locationRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	var suggestions []domain.MergeSuggestion
	for i := range locations {
		if locations[i].IsUnmappedBucket() {
			continue
		}
		for j := i + 1; j < len(locations); j++ {
			if locations[j].IsUnmappedBucket() {
				continue
			}
			sim := resolver.Similarity(locations[i].Name, locations[j].Name)
			if sim >= MergeSuggestionThreshold {
				suggestions = append(suggestions, domain.MergeSuggestion{
					LocationID:    locations[i].ID,
					LocationName:  locations[i].Name,
					CandidateID:   locations[j].ID,
					CandidateName: locations[j].Name,
					Similarity:    sim,
				})
			}
		}
	}
	return suggestions, nil
}
