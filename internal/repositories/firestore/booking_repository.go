package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/decoriva/api/internal/domain"
	pfirestore "github.com/decoriva/api/internal/platform/firestore"
	"github.com/decoriva/api/internal/repositories"
)

const bookingCollection = "bookings"

// BookingRepository persists bookings in Firestore. State transitions that
// depend on the current document run inside transactions so concurrent writers
// observe document-level atomicity rather than in-process locks.
type BookingRepository struct {
	base     *pfirestore.BaseRepository[bookingDocument]
	provider *pfirestore.Provider
}

var _ repositories.BookingRepository = (*BookingRepository)(nil)

// NewBookingRepository constructs a Firestore-backed booking repository.
func NewBookingRepository(provider *pfirestore.Provider) (*BookingRepository, error) {
	if provider == nil {
		return nil, errors.New("booking repository requires firestore provider")
	}
	return &BookingRepository{
		base:     pfirestore.NewBaseRepository[bookingDocument](provider, bookingCollection),
		provider: provider,
	}, nil
}

type bookingDocument struct {
	ServiceID      string               `firestore:"serviceId"`
	ServiceName    string               `firestore:"serviceName"`
	Price          int64                `firestore:"price"`
	UserEmail      string               `firestore:"userEmail"`
	DecoratorEmail string               `firestore:"decoratorEmail,omitempty"`
	Status         string               `firestore:"status"`
	BookingDate    string               `firestore:"bookingDate,omitempty"`
	Addons         []bookingAddonRecord `firestore:"addons,omitempty"`
	Coupon         string               `firestore:"coupon,omitempty"`
	TransactionID  string               `firestore:"transactionId,omitempty"`
	AmountPaid     int64                `firestore:"amountPaid,omitempty"`
	CreatedAt      time.Time            `firestore:"createdAt"`
}

type bookingAddonRecord struct {
	Name  string `firestore:"name"`
	Price int64  `firestore:"price"`
}

// Insert creates the booking document, rejecting duplicate identifiers.
func (r *BookingRepository) Insert(ctx context.Context, booking domain.Booking) error {
	if strings.TrimSpace(booking.ID) == "" {
		return errors.New("booking id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, booking.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, fromDomainBooking(booking)); err != nil {
		return pfirestore.WrapError("bookings.insert", err)
	}
	return nil
}

// FindByID loads the booking by identifier.
func (r *BookingRepository) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	doc, err := r.base.Get(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	return toDomainBooking(doc.ID, doc.Data), nil
}

// List returns bookings matching the filter, newest first.
func (r *BookingRepository) List(ctx context.Context, filter repositories.BookingListFilter) ([]domain.Booking, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if email := strings.TrimSpace(filter.UserEmail); email != "" {
			query = query.Where("userEmail", "==", email)
		}
		if email := strings.TrimSpace(filter.DecoratorEmail); email != "" {
			query = query.Where("decoratorEmail", "==", email)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	bookings := make([]domain.Booking, 0, len(docs))
	for _, doc := range docs {
		bookings = append(bookings, toDomainBooking(doc.ID, doc.Data))
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	return bookings, nil
}

// UpdateFields applies the supplied field map verbatim to the document.
func (r *BookingRepository) UpdateFields(ctx context.Context, bookingID string, fields map[string]any) error {
	if len(fields) == 0 {
		return errors.New("booking update requires at least one field")
	}

	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	_, err := r.base.Update(ctx, bookingID, updates)
	return err
}

// UpdateOwnedStatus transitions the status of a booking assigned to the
// decorator. A missing booking and a booking assigned to another decorator
// produce the same not-found error, so callers cannot probe foreign bookings.
func (r *BookingRepository) UpdateOwnedStatus(ctx context.Context, bookingID string, decoratorEmail string, newStatus string) error {
	decoratorEmail = normaliseEmail(decoratorEmail)
	if decoratorEmail == "" {
		return errors.New("decorator email is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, bookingID)
		if err != nil {
			return err
		}

		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NotFoundError("bookings.status")
			}
			return err
		}

		decoded, err := pfirestore.DecodeSnapshot[bookingDocument](snap, "bookings.status")
		if err != nil {
			return err
		}
		if normaliseEmail(decoded.Data.DecoratorEmail) != decoratorEmail {
			return pfirestore.NotFoundError("bookings.status")
		}

		return tx.Update(docRef, []firestore.Update{
			{Path: "status", Value: newStatus},
		})
	})
	return pfirestore.WrapError("bookings.status", err)
}

// Settle marks the booking paid and records the provider transaction and the
// amount actually charged. Replayed settlements converge on the same state; a
// booking that has already reached completed stays untouched, so a stale
// verification can never pull it back to paid.
func (r *BookingRepository) Settle(ctx context.Context, bookingID string, transactionID string, amount int64) error {
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, bookingID)
		if err != nil {
			return err
		}

		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NotFoundError("bookings.settle")
			}
			return err
		}

		decoded, err := pfirestore.DecodeSnapshot[bookingDocument](snap, "bookings.settle")
		if err != nil {
			return err
		}
		if decoded.Data.Status == domain.BookingStatusCompleted {
			return nil
		}

		return tx.Update(docRef, []firestore.Update{
			{Path: "status", Value: domain.BookingStatusPaid},
			{Path: "transactionId", Value: transactionID},
			{Path: "amountPaid", Value: amount},
		})
	})
	return pfirestore.WrapError("bookings.settle", err)
}

// DeleteIfPending removes the booking only while it is still pending. Once
// payment has started the delete reports a conflict instead.
func (r *BookingRepository) DeleteIfPending(ctx context.Context, bookingID string) error {
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, bookingID)
		if err != nil {
			return err
		}

		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NotFoundError("bookings.cancel")
			}
			return err
		}

		decoded, err := pfirestore.DecodeSnapshot[bookingDocument](snap, "bookings.cancel")
		if err != nil {
			return err
		}
		if decoded.Data.Status != domain.BookingStatusPending {
			return status.Error(codes.FailedPrecondition, "booking is no longer pending")
		}

		return tx.Delete(docRef)
	})
	return pfirestore.WrapError("bookings.cancel", err)
}

// Count reports the number of bookings.
func (r *BookingRepository) Count(ctx context.Context) (int64, error) {
	return r.base.Count(ctx, nil)
}

// SumSettledRevenue totals the amounts actually charged for paid and completed
// bookings, so addons and coupon discounts are reflected.
func (r *BookingRepository) SumSettledRevenue(ctx context.Context) (int64, error) {
	return r.base.SumInt64(ctx, "amountPaid", func(query firestore.Query) firestore.Query {
		return query.Where("status", "in", []string{domain.BookingStatusPaid, domain.BookingStatusCompleted})
	})
}

func fromDomainBooking(booking domain.Booking) bookingDocument {
	addons := make([]bookingAddonRecord, 0, len(booking.Addons))
	for _, addon := range booking.Addons {
		addons = append(addons, bookingAddonRecord{Name: addon.Name, Price: addon.Price})
	}
	return bookingDocument{
		ServiceID:      booking.ServiceID,
		ServiceName:    booking.ServiceName,
		Price:          booking.Price,
		UserEmail:      normaliseEmail(booking.UserEmail),
		DecoratorEmail: normaliseEmail(booking.DecoratorEmail),
		Status:         booking.Status,
		BookingDate:    booking.BookingDate,
		Addons:         addons,
		Coupon:         booking.Coupon,
		TransactionID:  booking.TransactionID,
		AmountPaid:     booking.AmountPaid,
		CreatedAt:      booking.CreatedAt,
	}
}

func toDomainBooking(id string, doc bookingDocument) domain.Booking {
	addons := make([]domain.BookingAddon, 0, len(doc.Addons))
	for _, addon := range doc.Addons {
		addons = append(addons, domain.BookingAddon{Name: addon.Name, Price: addon.Price})
	}
	return domain.Booking{
		ID:             id,
		ServiceID:      doc.ServiceID,
		ServiceName:    doc.ServiceName,
		Price:          doc.Price,
		UserEmail:      doc.UserEmail,
		DecoratorEmail: doc.DecoratorEmail,
		Status:         doc.Status,
		BookingDate:    doc.BookingDate,
		Addons:         addons,
		Coupon:         doc.Coupon,
		TransactionID:  doc.TransactionID,
		AmountPaid:     doc.AmountPaid,
		CreatedAt:      doc.CreatedAt,
	}
}
