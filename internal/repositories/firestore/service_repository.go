package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/decoriva/api/internal/domain"
	pfirestore "github.com/decoriva/api/internal/platform/firestore"
	"github.com/decoriva/api/internal/repositories"
)

const serviceCollection = "services"

// ServiceRepository persists the decoration service catalogue in Firestore.
type ServiceRepository struct {
	base *pfirestore.BaseRepository[serviceDocument]
}

var _ repositories.ServiceRepository = (*ServiceRepository)(nil)

// NewServiceRepository constructs a Firestore-backed service repository.
func NewServiceRepository(provider *pfirestore.Provider) (*ServiceRepository, error) {
	if provider == nil {
		return nil, errors.New("service repository requires firestore provider")
	}
	return &ServiceRepository{
		base: pfirestore.NewBaseRepository[serviceDocument](provider, serviceCollection),
	}, nil
}

type serviceDocument struct {
	Name        string    `firestore:"name"`
	Category    string    `firestore:"category"`
	Location    string    `firestore:"location"`
	Cost        int64     `firestore:"cost"`
	Description string    `firestore:"description,omitempty"`
	Image       string    `firestore:"image,omitempty"`
	Rating      float64   `firestore:"rating"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// Insert creates the catalogue entry, rejecting duplicate identifiers.
func (r *ServiceRepository) Insert(ctx context.Context, service domain.Service) error {
	if strings.TrimSpace(service.ID) == "" {
		return errors.New("service id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, service.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, fromDomainService(service)); err != nil {
		return pfirestore.WrapError("services.insert", err)
	}
	return nil
}

// Update replaces the catalogue entry.
func (r *ServiceRepository) Update(ctx context.Context, service domain.Service) error {
	if strings.TrimSpace(service.ID) == "" {
		return errors.New("service id is required")
	}
	_, err := r.base.Update(ctx, service.ID, []firestore.Update{
		{Path: "name", Value: service.Name},
		{Path: "category", Value: service.Category},
		{Path: "location", Value: service.Location},
		{Path: "cost", Value: service.Cost},
		{Path: "description", Value: service.Description},
		{Path: "image", Value: service.Image},
		{Path: "rating", Value: service.Rating},
		{Path: "updatedAt", Value: service.UpdatedAt},
	})
	return err
}

// Delete removes the catalogue entry.
func (r *ServiceRepository) Delete(ctx context.Context, serviceID string) error {
	return r.base.Delete(ctx, serviceID)
}

// FindByID loads a single catalogue entry.
func (r *ServiceRepository) FindByID(ctx context.Context, serviceID string) (domain.Service, error) {
	doc, err := r.base.Get(ctx, serviceID)
	if err != nil {
		return domain.Service{}, err
	}
	return toDomainService(doc.ID, doc.Data), nil
}

// List returns catalogue entries matching the structured filter, newest first.
func (r *ServiceRepository) List(ctx context.Context, filter repositories.ServiceListFilter) ([]domain.Service, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if category := strings.TrimSpace(filter.Category); category != "" {
			query = query.Where("category", "==", category)
		}
		if location := strings.TrimSpace(filter.Location); location != "" {
			query = query.Where("location", "==", location)
		}
		if filter.MaxCost > 0 {
			query = query.Where("cost", "<=", filter.MaxCost).OrderBy("cost", firestore.Asc)
		} else {
			query = query.OrderBy("createdAt", firestore.Desc)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	services := make([]domain.Service, 0, len(docs))
	for _, doc := range docs {
		services = append(services, toDomainService(doc.ID, doc.Data))
	}
	return services, nil
}

// DistinctLocations returns the sorted set of locations present in the catalogue.
func (r *ServiceRepository) DistinctLocations(ctx context.Context) ([]string, error) {
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return nil, err
	}

	iter := coll.Select("location").Documents(ctx)
	defer iter.Stop()

	seen := make(map[string]struct{})
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("services.locations", err)
		}
		if raw, ok := snap.Data()["location"]; ok {
			if location, ok := raw.(string); ok && strings.TrimSpace(location) != "" {
				seen[location] = struct{}{}
			}
		}
	}

	locations := make([]string, 0, len(seen))
	for location := range seen {
		locations = append(locations, location)
	}
	sort.Strings(locations)
	return locations, nil
}

// Count reports the number of catalogue entries.
func (r *ServiceRepository) Count(ctx context.Context) (int64, error) {
	return r.base.Count(ctx, nil)
}

func fromDomainService(service domain.Service) serviceDocument {
	return serviceDocument{
		Name:        service.Name,
		Category:    service.Category,
		Location:    service.Location,
		Cost:        service.Cost,
		Description: service.Description,
		Image:       service.Image,
		Rating:      service.Rating,
		CreatedAt:   service.CreatedAt,
		UpdatedAt:   service.UpdatedAt,
	}
}

func toDomainService(id string, doc serviceDocument) domain.Service {
	return domain.Service{
		ID:          id,
		Name:        doc.Name,
		Category:    doc.Category,
		Location:    doc.Location,
		Cost:        doc.Cost,
		Description: doc.Description,
		Image:       doc.Image,
		Rating:      doc.Rating,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
