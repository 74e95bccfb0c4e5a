package services

import (
	"context"
	"errors"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/payments"
	"github.com/decoriva/api/internal/platform/auth"
	"github.com/decoriva/api/internal/repositories"
)

type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

var _ repositories.RepositoryError = (*stubRepoError)(nil)

func notFoundErr() error { return &stubRepoError{msg: "not found", notFound: true} }
func conflictErr() error { return &stubRepoError{msg: "conflict", conflict: true} }

func identityCtx(email string) context.Context {
	return auth.WithIdentity(context.Background(), &auth.Identity{UID: "uid-" + email, Email: email})
}

type stubUserRepo struct {
	ensureFn     func(ctx context.Context, user domain.User) (domain.User, error)
	findFn       func(ctx context.Context, email string) (domain.User, error)
	listFn       func(ctx context.Context) ([]domain.User, error)
	updateRoleFn func(ctx context.Context, email string, role string) error
	countFn      func(ctx context.Context) (int64, error)
}

func (s *stubUserRepo) Ensure(ctx context.Context, user domain.User) (domain.User, error) {
	if s.ensureFn == nil {
		return domain.User{}, errors.New("ensure not stubbed")
	}
	return s.ensureFn(ctx, user)
}

func (s *stubUserRepo) Find(ctx context.Context, email string) (domain.User, error) {
	if s.findFn == nil {
		return domain.User{}, notFoundErr()
	}
	return s.findFn(ctx, email)
}

func (s *stubUserRepo) List(ctx context.Context) ([]domain.User, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s *stubUserRepo) UpdateRole(ctx context.Context, email string, role string) error {
	if s.updateRoleFn == nil {
		return errors.New("update role not stubbed")
	}
	return s.updateRoleFn(ctx, email, role)
}

func (s *stubUserRepo) Count(ctx context.Context) (int64, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx)
}

// roleRepo returns a user repository serving fixed roles keyed by email.
func roleRepo(roles map[string]string) *stubUserRepo {
	return &stubUserRepo{
		findFn: func(_ context.Context, email string) (domain.User, error) {
			role, ok := roles[email]
			if !ok {
				return domain.User{}, notFoundErr()
			}
			return domain.User{Email: email, Role: role}, nil
		},
	}
}

type stubServiceRepo struct {
	insertFn    func(ctx context.Context, service domain.Service) error
	updateFn    func(ctx context.Context, service domain.Service) error
	deleteFn    func(ctx context.Context, serviceID string) error
	findFn      func(ctx context.Context, serviceID string) (domain.Service, error)
	listFn      func(ctx context.Context, filter repositories.ServiceListFilter) ([]domain.Service, error)
	locationsFn func(ctx context.Context) ([]string, error)
	countFn     func(ctx context.Context) (int64, error)
}

func (s *stubServiceRepo) Insert(ctx context.Context, service domain.Service) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, service)
}

func (s *stubServiceRepo) Update(ctx context.Context, service domain.Service) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, service)
}

func (s *stubServiceRepo) Delete(ctx context.Context, serviceID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, serviceID)
}

func (s *stubServiceRepo) FindByID(ctx context.Context, serviceID string) (domain.Service, error) {
	if s.findFn == nil {
		return domain.Service{}, notFoundErr()
	}
	return s.findFn(ctx, serviceID)
}

func (s *stubServiceRepo) List(ctx context.Context, filter repositories.ServiceListFilter) ([]domain.Service, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

func (s *stubServiceRepo) DistinctLocations(ctx context.Context) ([]string, error) {
	if s.locationsFn == nil {
		return nil, nil
	}
	return s.locationsFn(ctx)
}

func (s *stubServiceRepo) Count(ctx context.Context) (int64, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx)
}

type stubBookingRepo struct {
	insertFn            func(ctx context.Context, booking domain.Booking) error
	findFn              func(ctx context.Context, bookingID string) (domain.Booking, error)
	listFn              func(ctx context.Context, filter repositories.BookingListFilter) ([]domain.Booking, error)
	updateFieldsFn      func(ctx context.Context, bookingID string, fields map[string]any) error
	updateOwnedStatusFn func(ctx context.Context, bookingID string, decoratorEmail string, status string) error
	settleFn            func(ctx context.Context, bookingID string, transactionID string, amount int64) error
	deleteIfPendingFn   func(ctx context.Context, bookingID string) error
	countFn             func(ctx context.Context) (int64, error)
	sumRevenueFn        func(ctx context.Context) (int64, error)
}

func (s *stubBookingRepo) Insert(ctx context.Context, booking domain.Booking) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, booking)
}

func (s *stubBookingRepo) FindByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	if s.findFn == nil {
		return domain.Booking{}, notFoundErr()
	}
	return s.findFn(ctx, bookingID)
}

func (s *stubBookingRepo) List(ctx context.Context, filter repositories.BookingListFilter) ([]domain.Booking, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

func (s *stubBookingRepo) UpdateFields(ctx context.Context, bookingID string, fields map[string]any) error {
	if s.updateFieldsFn == nil {
		return errors.New("update fields not stubbed")
	}
	return s.updateFieldsFn(ctx, bookingID, fields)
}

func (s *stubBookingRepo) UpdateOwnedStatus(ctx context.Context, bookingID string, decoratorEmail string, status string) error {
	if s.updateOwnedStatusFn == nil {
		return errors.New("update owned status not stubbed")
	}
	return s.updateOwnedStatusFn(ctx, bookingID, decoratorEmail, status)
}

func (s *stubBookingRepo) Settle(ctx context.Context, bookingID string, transactionID string, amount int64) error {
	if s.settleFn == nil {
		return errors.New("settle not stubbed")
	}
	return s.settleFn(ctx, bookingID, transactionID, amount)
}

func (s *stubBookingRepo) DeleteIfPending(ctx context.Context, bookingID string) error {
	if s.deleteIfPendingFn == nil {
		return errors.New("delete not stubbed")
	}
	return s.deleteIfPendingFn(ctx, bookingID)
}

func (s *stubBookingRepo) Count(ctx context.Context) (int64, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx)
}

func (s *stubBookingRepo) SumSettledRevenue(ctx context.Context) (int64, error) {
	if s.sumRevenueFn == nil {
		return 0, nil
	}
	return s.sumRevenueFn(ctx)
}

type stubRequestRepo struct {
	insertFn        func(ctx context.Context, request domain.DecoratorRequest) error
	findFn          func(ctx context.Context, requestID string) (domain.DecoratorRequest, error)
	findByEmailFn   func(ctx context.Context, email string) (domain.DecoratorRequest, error)
	listFn          func(ctx context.Context, status string) ([]domain.DecoratorRequest, error)
	updateStatusFn  func(ctx context.Context, requestID string, status string) error
	countByStatusFn func(ctx context.Context, status string) (int64, error)
}

func (s *stubRequestRepo) Insert(ctx context.Context, request domain.DecoratorRequest) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, request)
}

func (s *stubRequestRepo) FindByID(ctx context.Context, requestID string) (domain.DecoratorRequest, error) {
	if s.findFn == nil {
		return domain.DecoratorRequest{}, notFoundErr()
	}
	return s.findFn(ctx, requestID)
}

func (s *stubRequestRepo) FindByEmail(ctx context.Context, email string) (domain.DecoratorRequest, error) {
	if s.findByEmailFn == nil {
		return domain.DecoratorRequest{}, notFoundErr()
	}
	return s.findByEmailFn(ctx, email)
}

func (s *stubRequestRepo) List(ctx context.Context, status string) ([]domain.DecoratorRequest, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, status)
}

func (s *stubRequestRepo) UpdateStatus(ctx context.Context, requestID string, status string) error {
	if s.updateStatusFn == nil {
		return errors.New("update status not stubbed")
	}
	return s.updateStatusFn(ctx, requestID, status)
}

func (s *stubRequestRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	if s.countByStatusFn == nil {
		return 0, nil
	}
	return s.countByStatusFn(ctx, status)
}

type stubPaymentProvider struct {
	createFn   func(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	retrieveFn func(ctx context.Context, sessionID string) (payments.SessionDetails, error)
}

func (s *stubPaymentProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	if s.createFn == nil {
		return payments.CheckoutSession{}, errors.New("create session not stubbed")
	}
	return s.createFn(ctx, req)
}

func (s *stubPaymentProvider) RetrieveSession(ctx context.Context, sessionID string) (payments.SessionDetails, error) {
	if s.retrieveFn == nil {
		return payments.SessionDetails{}, errors.New("retrieve session not stubbed")
	}
	return s.retrieveFn(ctx, sessionID)
}

type stubPublisher struct {
	messages []BookingEventMessage
	err      error
}

func (s *stubPublisher) PublishBookingEvent(_ context.Context, message BookingEventMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, message)
	return "msg-1", nil
}
