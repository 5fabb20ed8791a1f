package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClientFixture(t *testing.T) (*ClientService, *repository.LocationRepository) {
	t.Helper()
	db := newTestDB(t)
	clientRepo := repository.NewClientRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	return NewClientService(clientRepo, locationRepo, zap.NewNop()), locationRepo
}

func TestCreateClientSeedsBucket(t *testing.T) {
	svc, locationRepo := newClientFixture(t)
	ctx := context.Background()

	dto, err := svc.Create(ctx, &domain.CreateClientRequest{Name: "  Capriotti's  "})
	require.NoError(t, err)
	assert.Equal(t, "Capriotti's", dto.Name)
	assert.NotEqual(t, uuid.Nil, dto.ID)

	bucket, err := locationRepo.GetUnmappedBucket(ctx, dto.ID)
	require.NoError(t, err)
	require.NotNil(t, bucket)
	assert.Equal(t, domain.UnmappedBucketName, bucket.Name)
}

func TestCreateClientDuplicateName(t *testing.T) {
	svc, _ := newClientFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.CreateClientRequest{Name: "Capriotti's"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &domain.CreateClientRequest{Name: "Capriotti's"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateClientEmptyName(t *testing.T) {
	svc, _ := newClientFixture(t)
	_, err := svc.Create(context.Background(), &domain.CreateClientRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetClientNotFound(t *testing.T) {
	svc, _ := newClientFixture(t)
	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListClients(t *testing.T) {
	svc, _ := newClientFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.CreateClientRequest{Name: "Zeta Brands"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &domain.CreateClientRequest{Name: "Alpha Eats"})
	require.NoError(t, err)

	clients, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "Alpha Eats", clients[0].Name)
	assert.Equal(t, "Zeta Brands", clients[1].Name)
}
