package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/decoriva/api/internal/domain"
	pfirestore "github.com/decoriva/api/internal/platform/firestore"
	"github.com/decoriva/api/internal/repositories"
)

const userCollection = "users"

// UserRepository persists user profiles in Firestore keyed by lowercased email.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
	now      func() time.Time
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base:     pfirestore.NewBaseRepository[userDocument](provider, userCollection),
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

type userDocument struct {
	Email     string    `firestore:"email"`
	Name      string    `firestore:"name"`
	PhotoURL  string    `firestore:"photoURL,omitempty"`
	Role      string    `firestore:"role"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// Ensure upserts the profile for the address. New accounts start with the user
// role; existing accounts keep whatever role they already hold.
func (r *UserRepository) Ensure(ctx context.Context, user domain.User) (domain.User, error) {
	email := normaliseEmail(user.Email)
	if email == "" {
		return domain.User{}, errors.New("user email is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, email)
		if err != nil {
			return err
		}

		_, err = tx.Get(docRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			return tx.Set(docRef, userDocument{
				Email:     email,
				Name:      strings.TrimSpace(user.Name),
				PhotoURL:  strings.TrimSpace(user.PhotoURL),
				Role:      domain.RoleUser,
				CreatedAt: r.now(),
			})
		}

		updates := []firestore.Update{
			{Path: "name", Value: strings.TrimSpace(user.Name)},
			{Path: "photoURL", Value: strings.TrimSpace(user.PhotoURL)},
		}
		return tx.Update(docRef, updates)
	})
	if err != nil {
		return domain.User{}, pfirestore.WrapError("users.ensure", err)
	}

	return r.Find(ctx, email)
}

// Find loads the user profile for the address.
func (r *UserRepository) Find(ctx context.Context, email string) (domain.User, error) {
	email = normaliseEmail(email)
	if email == "" {
		return domain.User{}, errors.New("user email is required")
	}

	doc, err := r.base.Get(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(doc.Data), nil
}

// List returns all registered users, newest first.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, toDomainUser(doc.Data))
	}
	return users, nil
}

// UpdateRole changes the role stored for the address.
func (r *UserRepository) UpdateRole(ctx context.Context, email string, role string) error {
	email = normaliseEmail(email)
	if email == "" {
		return errors.New("user email is required")
	}
	if !domain.ValidRole(role) {
		return errors.New("unknown role " + role)
	}

	_, err := r.base.Update(ctx, email, []firestore.Update{
		{Path: "role", Value: role},
	})
	return err
}

// Count reports the number of registered users.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	return r.base.Count(ctx, nil)
}

func toDomainUser(doc userDocument) domain.User {
	return domain.User{
		Email:     doc.Email,
		Name:      doc.Name,
		PhotoURL:  doc.PhotoURL,
		Role:      doc.Role,
		CreatedAt: doc.CreatedAt,
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
