package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/decoriva/api/internal/domain"
	pfirestore "github.com/decoriva/api/internal/platform/firestore"
	"github.com/decoriva/api/internal/repositories"
)

const decoratorRequestCollection = "decoratorRequests"

// DecoratorRequestRepository persists decorator promotion requests in Firestore.
type DecoratorRequestRepository struct {
	base *pfirestore.BaseRepository[decoratorRequestDocument]
}

var _ repositories.DecoratorRequestRepository = (*DecoratorRequestRepository)(nil)

// NewDecoratorRequestRepository constructs a Firestore-backed promotion request repository.
func NewDecoratorRequestRepository(provider *pfirestore.Provider) (*DecoratorRequestRepository, error) {
	if provider == nil {
		return nil, errors.New("decorator request repository requires firestore provider")
	}
	return &DecoratorRequestRepository{
		base: pfirestore.NewBaseRepository[decoratorRequestDocument](provider, decoratorRequestCollection),
	}, nil
}

type decoratorRequestDocument struct {
	Email      string    `firestore:"email"`
	Name       string    `firestore:"name"`
	Speciality string    `firestore:"speciality,omitempty"`
	Experience string    `firestore:"experience,omitempty"`
	Status     string    `firestore:"status"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// Insert creates the promotion request, rejecting duplicate identifiers.
func (r *DecoratorRequestRepository) Insert(ctx context.Context, request domain.DecoratorRequest) error {
	if strings.TrimSpace(request.ID) == "" {
		return errors.New("decorator request id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, request.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, fromDomainRequest(request)); err != nil {
		return pfirestore.WrapError("decoratorRequests.insert", err)
	}
	return nil
}

// FindByID loads the promotion request by identifier.
func (r *DecoratorRequestRepository) FindByID(ctx context.Context, requestID string) (domain.DecoratorRequest, error) {
	doc, err := r.base.Get(ctx, requestID)
	if err != nil {
		return domain.DecoratorRequest{}, err
	}
	return toDomainRequest(doc.ID, doc.Data), nil
}

// FindByEmail returns the request submitted by the address, reporting
// not-found when no submission exists.
func (r *DecoratorRequestRepository) FindByEmail(ctx context.Context, email string) (domain.DecoratorRequest, error) {
	email = normaliseEmail(email)
	if email == "" {
		return domain.DecoratorRequest{}, errors.New("decorator request email is required")
	}

	doc, err := r.base.QueryOne(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("email", "==", email)
	})
	if err != nil {
		return domain.DecoratorRequest{}, err
	}
	return toDomainRequest(doc.ID, doc.Data), nil
}

// List returns requests, optionally narrowed by status, newest first.
func (r *DecoratorRequestRepository) List(ctx context.Context, status string) ([]domain.DecoratorRequest, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if s := strings.TrimSpace(status); s != "" {
			query = query.Where("status", "==", s)
		}
		return query.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	requests := make([]domain.DecoratorRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, toDomainRequest(doc.ID, doc.Data))
	}
	return requests, nil
}

// UpdateStatus records the decision on the request.
func (r *DecoratorRequestRepository) UpdateStatus(ctx context.Context, requestID string, status string) error {
	_, err := r.base.Update(ctx, requestID, []firestore.Update{
		{Path: "status", Value: status},
	})
	return err
}

// CountByStatus reports the number of requests in the given status.
func (r *DecoratorRequestRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	return r.base.Count(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("status", "==", status)
	})
}

func fromDomainRequest(request domain.DecoratorRequest) decoratorRequestDocument {
	return decoratorRequestDocument{
		Email:      normaliseEmail(request.Email),
		Name:       strings.TrimSpace(request.Name),
		Speciality: strings.TrimSpace(request.Speciality),
		Experience: strings.TrimSpace(request.Experience),
		Status:     request.Status,
		CreatedAt:  request.CreatedAt,
	}
}

func toDomainRequest(id string, doc decoratorRequestDocument) domain.DecoratorRequest {
	return domain.DecoratorRequest{
		ID:         id,
		Email:      doc.Email,
		Name:       doc.Name,
		Speciality: doc.Speciality,
		Experience: doc.Experience,
		Status:     doc.Status,
		CreatedAt:  doc.CreatedAt,
	}
}
