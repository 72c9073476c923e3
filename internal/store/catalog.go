package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Aaditya473/Alpha-Fitness/internal/models"
)

const serviceColumns = "id, name, description, price, active"

// GetActiveService retrieves an active service by ID. Inactive services are
// reported as ErrNotFound.
func (s *Store) GetActiveService(ctx context.Context, id int64) (*models.Service, error) {
	var svc models.Service
	err := s.db.GetContext(ctx, &svc,
		"SELECT "+serviceColumns+" FROM services WHERE id = $1 AND active = TRUE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// ListActiveServices retrieves all active services
func (s *Store) ListActiveServices(ctx context.Context) ([]models.Service, error) {
	services := []models.Service{}
	err := s.db.SelectContext(ctx, &services,
		"SELECT "+serviceColumns+" FROM services WHERE active = TRUE ORDER BY id")
	return services, err
}
