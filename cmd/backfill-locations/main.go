package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/config"
	"github.com/platemetrics/delivery-api/internal/database"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/logger"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/platemetrics/delivery-api/internal/resolver"
	"go.uber.org/zap"
)

// BackfillThreshold is the minimum name similarity for moving a bucketed
// transaction to a canonical location. Fuzzy matching is confined to this
// offline tool; the live resolver never uses it.
const BackfillThreshold = 0.90

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Backfill error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		clientFlag = flag.String("client", "", "client id to backfill (required)")
		threshold  = flag.Float64("threshold", BackfillThreshold, "minimum name similarity")
		dryRun     = flag.Bool("dry-run", false, "report matches without writing")
	)
	flag.Parse()

	if *clientFlag == "" {
		return fmt.Errorf("usage: backfill-locations -client <uuid> [-threshold 0.90] [-dry-run]")
	}
	clientID, err := uuid.Parse(*clientFlag)
	if err != nil {
		return fmt.Errorf("invalid client id: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx := context.Background()
	locationRepo := repository.NewLocationRepository(db)
	txnRepo := repository.NewTransactionRepository(db)

	bucket, err := locationRepo.GetUnmappedBucket(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to get unmapped bucket: %w", err)
	}
	if bucket == nil {
		log.Info("no unmapped bucket for client, nothing to backfill",
			zap.String("client_id", clientID.String()))
		return nil
	}

	locations, err := locationRepo.ListByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to list locations: %w", err)
	}
	var candidates []domain.Location
	for _, loc := range locations {
		if !loc.IsUnmappedBucket() {
			candidates = append(candidates, loc)
		}
	}
	if len(candidates) == 0 {
		log.Info("no canonical locations to match against",
			zap.String("client_id", clientID.String()))
		return nil
	}

	filter := domain.MetricsFilter{
		ClientID:        clientID,
		LocationID:      &bucket.ID,
		IncludeUnmapped: true,
	}

	moved, err := backfillPlatforms(ctx, txnRepo, filter, candidates, *threshold, *dryRun, log)
	if err != nil {
		return err
	}

	log.Info("backfill complete",
		zap.String("client_id", clientID.String()),
		zap.Int("transactions_moved", moved),
		zap.Bool("dry_run", *dryRun),
	)
	return nil
}

// backfillPlatforms scans each platform's bucketed transactions and moves the
// ones whose store name fuzzily matches a canonical location
func backfillPlatforms(
	ctx context.Context,
	txnRepo *repository.TransactionRepository,
	filter domain.MetricsFilter,
	candidates []domain.Location,
	threshold float64,
	dryRun bool,
	log *zap.Logger,
) (int, error) {
	var moved int

	ue, err := txnRepo.ListUberEats(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to list uber eats transactions: %w", err)
	}
	ids := make(map[uuid.UUID][]uuid.UUID)
	for i := range ue {
		if loc := bestMatch(ue[i].StoreName, candidates, threshold); loc != nil {
			ids[loc.ID] = append(ids[loc.ID], ue[i].ID)
		}
	}
	n, err := apply(ctx, txnRepo, domain.PlatformUberEats, ids, dryRun, log)
	if err != nil {
		return 0, err
	}
	moved += n

	dd, err := txnRepo.ListDoorDash(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to list doordash transactions: %w", err)
	}
	ids = make(map[uuid.UUID][]uuid.UUID)
	for i := range dd {
		if loc := bestMatch(dd[i].StoreName, candidates, threshold); loc != nil {
			ids[loc.ID] = append(ids[loc.ID], dd[i].ID)
		}
	}
	n, err = apply(ctx, txnRepo, domain.PlatformDoorDash, ids, dryRun, log)
	if err != nil {
		return 0, err
	}
	moved += n

	gh, err := txnRepo.ListGrubhub(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to list grubhub transactions: %w", err)
	}
	ids = make(map[uuid.UUID][]uuid.UUID)
	for i := range gh {
		// Grubhub store names are constant across a brand, so match on the
		// street address instead
		if gh[i].StreetAddress == "" {
			continue
		}
		if loc := bestAddressMatch(gh[i].StreetAddress, candidates, threshold); loc != nil {
			ids[loc.ID] = append(ids[loc.ID], gh[i].ID)
		}
	}
	n, err = apply(ctx, txnRepo, domain.PlatformGrubhub, ids, dryRun, log)
	if err != nil {
		return 0, err
	}
	moved += n

	return moved, nil
}

// bestMatch returns the single best-scoring location at or above the
// threshold, or nil when nothing clears it
func bestMatch(storeName string, candidates []domain.Location, threshold float64) *domain.Location {
	if storeName == "" {
		return nil
	}
	var best *domain.Location
	bestScore := threshold
	for i := range candidates {
		score := resolver.Similarity(storeName, candidates[i].Name)
		if score > bestScore || (score == bestScore && best == nil) {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best
}

// bestAddressMatch scores normalized street addresses instead of names
func bestAddressMatch(address string, candidates []domain.Location, threshold float64) *domain.Location {
	norm := resolver.NormalizeAddress(address)
	if norm == "" {
		return nil
	}
	var best *domain.Location
	bestScore := threshold
	for i := range candidates {
		if candidates[i].Address == "" {
			continue
		}
		score := resolver.Similarity(norm, resolver.NormalizeAddress(candidates[i].Address))
		if score > bestScore || (score == bestScore && best == nil) {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best
}

func apply(
	ctx context.Context,
	txnRepo *repository.TransactionRepository,
	platform domain.Platform,
	ids map[uuid.UUID][]uuid.UUID,
	dryRun bool,
	log *zap.Logger,
) (int, error) {
	var moved int
	for locationID, txnIDs := range ids {
		log.Info("backfill match",
			zap.String("platform", string(platform)),
			zap.String("location_id", locationID.String()),
			zap.Int("transactions", len(txnIDs)),
			zap.Bool("dry_run", dryRun),
		)
		if dryRun {
			continue
		}
		if err := txnRepo.SetLocation(ctx, platform, txnIDs, locationID); err != nil {
			return moved, fmt.Errorf("failed to reassign %s transactions: %w", platform, err)
		}
		moved += len(txnIDs)
	}
	return moved, nil
}
