package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/ingest"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/platemetrics/delivery-api/internal/resolver"
	"github.com/platemetrics/delivery-api/internal/storage"
	"go.uber.org/zap"
)

// IngestionService runs one platform export through the full pipeline:
// archive raw bytes, normalize, parse, dedupe, resolve locations, upsert.
// The whole pass is idempotent: re-ingesting an identical export changes
// nothing except the updated counters.
type IngestionService struct {
	txnRepo  *repository.TransactionRepository
	resolver *resolver.Resolver
	archive  storage.Storage
	logger   *zap.Logger
}

func NewIngestionService(
	txnRepo *repository.TransactionRepository,
	res *resolver.Resolver,
	archive storage.Storage,
	logger *zap.Logger,
) *IngestionService {
	return &IngestionService{
		txnRepo:  txnRepo,
		resolver: res,
		archive:  archive,
		logger:   logger,
	}
}

// IngestFile ingests one raw platform export for a client
func (s *IngestionService) IngestFile(ctx context.Context, clientID uuid.UUID, platform domain.Platform, filename string, data []byte) (*domain.IngestResult, error) {
	if clientID == uuid.Nil {
		return nil, ErrClientRequired
	}

	result := &domain.IngestResult{Platform: platform}

	// Archive the raw export first so corrective re-imports can be replayed.
	// Archival failure is logged, not fatal; the upload itself is idempotent.
	if s.archive != nil {
		path, _, err := s.archive.Upload(ctx, filename, "text/csv", bytes.NewReader(data))
		if err != nil {
			s.logger.Warn("failed to archive raw export",
				zap.String("client_id", clientID.String()),
				zap.String("platform", string(platform)),
				zap.Error(err),
			)
		} else {
			result.ArchivePath = path
		}
	}

	table, err := ingest.NewTable(data, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	result.RowsRead = table.Len()

	session, err := s.resolver.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}

	switch platform {
	case domain.PlatformUberEats:
		err = s.ingestUberEats(ctx, clientID, table, session, result)
	case domain.PlatformDoorDash:
		err = s.ingestDoorDash(ctx, clientID, table, session, result)
	case domain.PlatformGrubhub:
		err = s.ingestGrubhub(ctx, clientID, table, session, result)
	default:
		return nil, fmt.Errorf("unknown platform: %q", platform)
	}
	if err != nil {
		return nil, err
	}

	result.Unmapped = session.Unmapped()

	s.logger.Info("export ingested",
		zap.String("client_id", clientID.String()),
		zap.String("platform", string(platform)),
		zap.Int("rows_read", result.RowsRead),
		zap.Int("transactions", result.Transactions),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped_rows", result.SkippedRows),
		zap.Int("unmapped", result.Unmapped),
	)
	return result, nil
}

func (s *IngestionService) ingestUberEats(ctx context.Context, clientID uuid.UUID, table *ingest.Table, session *resolver.Session, result *domain.IngestResult) error {
	txns, skipped := ingest.ParseUberEats(table)
	result.SkippedRows = skipped
	result.Transactions = len(txns)

	for i := range txns {
		locID, err := session.Resolve(ctx, resolver.Ref{
			Platform: domain.PlatformUberEats,
			Name:     txns[i].StoreName,
			Key:      txns[i].StoreID,
		})
		if err != nil {
			return err
		}
		id := locID
		txns[i].LocationID = &id
	}

	created, updated, err := s.txnRepo.UpsertUberEats(ctx, clientID, txns)
	if err != nil {
		return err
	}
	result.Created, result.Updated = created, updated
	return nil
}

func (s *IngestionService) ingestDoorDash(ctx context.Context, clientID uuid.UUID, table *ingest.Table, session *resolver.Session, result *domain.IngestResult) error {
	txns, skipped := ingest.ParseDoorDash(table)
	result.SkippedRows = skipped
	result.Transactions = len(txns)

	for i := range txns {
		locID, err := session.Resolve(ctx, resolver.Ref{
			Platform: domain.PlatformDoorDash,
			Name:     txns[i].StoreName,
			Key:      txns[i].MerchantStoreID,
		})
		if err != nil {
			return err
		}
		id := locID
		txns[i].LocationID = &id
	}

	created, updated, err := s.txnRepo.UpsertDoorDash(ctx, clientID, txns)
	if err != nil {
		return err
	}
	result.Created, result.Updated = created, updated
	return nil
}

func (s *IngestionService) ingestGrubhub(ctx context.Context, clientID uuid.UUID, table *ingest.Table, session *resolver.Session, result *domain.IngestResult) error {
	txns, skipped := ingest.ParseGrubhub(table)
	result.SkippedRows = skipped
	result.Transactions = len(txns)

	for i := range txns {
		locID, err := session.Resolve(ctx, resolver.Ref{
			Platform:    domain.PlatformGrubhub,
			Name:        txns[i].StoreName,
			Address:     txns[i].StreetAddress,
			StoreNumber: txns[i].StoreNumber,
		})
		if err != nil {
			return err
		}
		id := locID
		txns[i].LocationID = &id
	}

	created, updated, err := s.txnRepo.UpsertGrubhub(ctx, clientID, txns)
	if err != nil {
		return err
	}
	result.Created, result.Updated = created, updated
	return nil
}

// PurgeRange deletes one platform's transactions inside a date range for
// corrective re-import. Fails fast when the client scope is missing.
func (s *IngestionService) PurgeRange(ctx context.Context, clientID uuid.UUID, platform domain.Platform, from, to time.Time) (int64, error) {
	if clientID == uuid.Nil {
		return 0, ErrClientRequired
	}
	if to.Before(from) {
		return 0, fmt.Errorf("%w: purge range end precedes start", ErrInvalidInput)
	}

	deleted, err := s.txnRepo.PurgeRange(ctx, clientID, platform, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to purge transactions: %w", err)
	}

	s.logger.Info("transactions purged",
		zap.String("client_id", clientID.String()),
		zap.String("platform", string(platform)),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}
