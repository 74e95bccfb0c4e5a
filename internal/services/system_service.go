package services

import (
	"context"
	"errors"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/repositories"
)

// SystemServiceDeps bundles dependencies required to construct a SystemService.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
}

type systemService struct {
	health repositories.HealthRepository
}

// NewSystemService wires a SystemService over the dependency health repository.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service requires health repository")
	}
	return &systemService{health: deps.Health}, nil
}

func (s *systemService) Readiness(ctx context.Context) (domain.SystemHealthReport, error) {
	return s.health.Collect(ctx)
}
