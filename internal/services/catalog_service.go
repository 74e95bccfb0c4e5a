package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/cases"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/repositories"
)

const (
	defaultServicePageLimit = 10
	maxServicePageLimit     = 50
)

// CatalogServiceDeps bundles dependencies required to construct a CatalogService.
type CatalogServiceDeps struct {
	Services repositories.ServiceRepository
	Access   *AccessControl
	Clock    func() time.Time
	IDs      func() string
	Logger   func(context.Context, string, map[string]any)
}

type catalogService struct {
	services  repositories.ServiceRepository
	access    *AccessControl
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
	sanitiser *bluemonday.Policy
	folder    cases.Caser
}

// NewCatalogService wires a CatalogService backed by the provided repository.
// Administrator-submitted descriptions are stripped of markup before storage.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Services == nil {
		return nil, errors.New("catalog service requires service repository")
	}
	if deps.Access == nil {
		return nil, errors.New("catalog service requires access control")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDs
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		services:  deps.Services,
		access:    deps.Access,
		clock:     func() time.Time { return clock().UTC() },
		newID:     newID,
		logger:    logger,
		sanitiser: bluemonday.StrictPolicy(),
		folder:    cases.Fold(),
	}, nil
}

func (s *catalogService) ListServices(ctx context.Context, query ServiceQuery) (ServicePage, error) {
	services, err := s.services.List(ctx, repositories.ServiceListFilter{
		Category: query.Category,
		Location: query.Location,
		MaxCost:  query.MaxCost,
	})
	if err != nil {
		return ServicePage{}, err
	}

	if query.MinCost > 0 {
		matched := services[:0]
		for _, service := range services {
			if service.Cost >= query.MinCost {
				matched = append(matched, service)
			}
		}
		services = matched
	}

	if needle := s.folder.String(strings.TrimSpace(query.Search)); needle != "" {
		matched := services[:0]
		for _, service := range services {
			if strings.Contains(s.folder.String(service.Name), needle) ||
				strings.Contains(s.folder.String(service.Category), needle) {
				matched = append(matched, service)
			}
		}
		services = matched
	}

	total := len(services)
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultServicePageLimit
	}
	if limit > maxServicePageLimit {
		limit = maxServicePageLimit
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return ServicePage{
		Services: services[start:end],
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

func (s *catalogService) Locations(ctx context.Context) ([]string, error) {
	return s.services.DistinctLocations(ctx)
}

func (s *catalogService) GetService(ctx context.Context, serviceID string) (domain.Service, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return domain.Service{}, ErrServiceInvalidInput
	}

	service, err := s.services.FindByID(ctx, serviceID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Service{}, ErrServiceNotFound
		}
		return domain.Service{}, err
	}
	return service, nil
}

func (s *catalogService) CreateService(ctx context.Context, cmd ServiceCommand) (domain.Service, error) {
	if _, err := s.access.Require(ctx, domain.RoleAdmin); err != nil {
		return domain.Service{}, err
	}

	service, err := s.buildService(cmd)
	if err != nil {
		return domain.Service{}, err
	}
	service.ID = s.newID()
	now := s.clock()
	service.CreatedAt = now
	service.UpdatedAt = now

	if err := s.services.Insert(ctx, service); err != nil {
		return domain.Service{}, err
	}

	s.logger(ctx, "catalog.service_created", map[string]any{
		"serviceId": service.ID,
		"category":  service.Category,
	})
	return service, nil
}

func (s *catalogService) UpdateService(ctx context.Context, serviceID string, cmd ServiceCommand) (domain.Service, error) {
	if _, err := s.access.Require(ctx, domain.RoleAdmin); err != nil {
		return domain.Service{}, err
	}

	existing, err := s.GetService(ctx, serviceID)
	if err != nil {
		return domain.Service{}, err
	}

	service, err := s.buildService(cmd)
	if err != nil {
		return domain.Service{}, err
	}
	service.ID = existing.ID
	service.CreatedAt = existing.CreatedAt
	service.UpdatedAt = s.clock()

	if err := s.services.Update(ctx, service); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Service{}, ErrServiceNotFound
		}
		return domain.Service{}, err
	}
	return service, nil
}

func (s *catalogService) DeleteService(ctx context.Context, serviceID string) error {
	if _, err := s.access.Require(ctx, domain.RoleAdmin); err != nil {
		return err
	}

	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return ErrServiceInvalidInput
	}

	if err := s.services.Delete(ctx, serviceID); err != nil {
		return err
	}
	s.logger(ctx, "catalog.service_deleted", map[string]any{
		"serviceId": serviceID,
	})
	return nil
}

func (s *catalogService) buildService(cmd ServiceCommand) (domain.Service, error) {
	name := strings.TrimSpace(cmd.Name)
	category := strings.TrimSpace(cmd.Category)
	location := strings.TrimSpace(cmd.Location)
	if name == "" || category == "" || location == "" {
		return domain.Service{}, ErrServiceInvalidInput
	}
	if cmd.Cost < 0 || cmd.Rating < 0 || cmd.Rating > 5 {
		return domain.Service{}, ErrServiceInvalidInput
	}

	return domain.Service{
		Name:        name,
		Category:    category,
		Location:    location,
		Cost:        cmd.Cost,
		Description: strings.TrimSpace(s.sanitiser.Sanitize(cmd.Description)),
		Image:       strings.TrimSpace(cmd.Image),
		Rating:      cmd.Rating,
	}, nil
}
