package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"go.uber.org/zap"
)

// RollupJobName is the name of the nightly weekly-financials rebuild job
const RollupJobName = "weekly_rollup"

// DefaultRollupTimeout bounds one full rebuild pass across all clients
const DefaultRollupTimeout = 30 * time.Minute

// ClientLister lists the clients whose rollups need rebuilding
type ClientLister interface {
	List(ctx context.Context) ([]domain.ClientDTO, error)
}

// RollupService regenerates one client's cached weekly rollup
type RollupService interface {
	Regenerate(ctx context.Context, clientID uuid.UUID) (int, error)
}

// RollupJob rebuilds every client's weekly financial cache. The rebuild is
// wholesale per client, so a nightly pass also picks up corrective re-imports
// done without an explicit regenerate call.
type RollupJob struct {
	clients    ClientLister
	financials RollupService
	logger     *zap.Logger
	timeout    time.Duration
}

func NewRollupJob(clients ClientLister, financials RollupService, logger *zap.Logger, timeout time.Duration) *RollupJob {
	return &RollupJob{
		clients:    clients,
		financials: financials,
		logger:     logger,
		timeout:    timeout,
	}
}

// Run executes the rollup rebuild for every client. A failure on one client is
// logged and does not stop the others.
func (j *RollupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting weekly rollup job")

	clients, err := j.clients.List(ctx)
	if err != nil {
		j.logger.Error("weekly rollup job failed to list clients", zap.Error(err))
		return
	}

	var rebuilt, failed int
	for _, client := range clients {
		rows, err := j.financials.Regenerate(ctx, client.ID)
		if err != nil {
			failed++
			j.logger.Error("weekly rollup failed for client",
				zap.String("client_id", client.ID.String()),
				zap.Error(err))
			continue
		}
		rebuilt++
		j.logger.Debug("weekly rollup rebuilt",
			zap.String("client_id", client.ID.String()),
			zap.Int("rows", rows))
	}

	j.logger.Info("weekly rollup job completed",
		zap.Int("clients_rebuilt", rebuilt),
		zap.Int("clients_failed", failed),
		zap.Duration("duration", time.Since(start)))
}

// RegisterRollupJob registers the nightly rollup rebuild with the scheduler
func RegisterRollupJob(scheduler *Scheduler, clients ClientLister, financials RollupService, logger *zap.Logger, cronExpr string) error {
	job := NewRollupJob(clients, financials, logger, DefaultRollupTimeout)
	return scheduler.AddJob(RollupJobName, cronExpr, job.Run)
}
