package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClientService manages tenants. Clients are created administratively and are
// immutable afterwards; every location and transaction hangs off one.
type ClientService struct {
	clientRepo   *repository.ClientRepository
	locationRepo *repository.LocationRepository
	logger       *zap.Logger
}

func NewClientService(
	clientRepo *repository.ClientRepository,
	locationRepo *repository.LocationRepository,
	logger *zap.Logger,
) *ClientService {
	return &ClientService{
		clientRepo:   clientRepo,
		locationRepo: locationRepo,
		logger:       logger,
	}
}

// Create registers a new client and seeds its unmapped bucket so ingestion has
// a fallback location from the first export onward
func (s *ClientService) Create(ctx context.Context, req *domain.CreateClientRequest) (*domain.ClientDTO, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrInvalidInput)
	}

	client := &domain.Client{Name: name}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: client %q already exists", ErrConflict, name)
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	bucket := &domain.Location{
		ClientID: client.ID,
		Name:     domain.UnmappedBucketName,
		Tag:      domain.LocationTagUnmappedBucket,
	}
	if err := s.locationRepo.Create(ctx, bucket); err != nil {
		return nil, fmt.Errorf("failed to create unmapped bucket: %w", err)
	}

	s.logger.Info("client created",
		zap.String("client_id", client.ID.String()),
		zap.String("name", client.Name),
	)
	dto := domain.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClientDTO, error) {
	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	dto := domain.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) List(ctx context.Context) ([]domain.ClientDTO, error) {
	clients, err := s.clientRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	dtos := make([]domain.ClientDTO, len(clients))
	for i := range clients {
		dtos[i] = domain.ToClientDTO(&clients[i])
	}
	return dtos, nil
}
