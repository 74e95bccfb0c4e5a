package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/repositories"
)

// DecoratorRequestServiceDeps bundles dependencies required to construct a DecoratorRequestService.
type DecoratorRequestServiceDeps struct {
	Requests  repositories.DecoratorRequestRepository
	Users     repositories.UserRepository
	Access    *AccessControl
	Publisher BookingEventPublisher
	Clock     func() time.Time
	IDs       func() string
	Logger    func(context.Context, string, map[string]any)
}

type decoratorRequestService struct {
	requests  repositories.DecoratorRequestRepository
	users     repositories.UserRepository
	access    *AccessControl
	publisher BookingEventPublisher
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewDecoratorRequestService wires the promotion workflow over the request and
// user repositories.
func NewDecoratorRequestService(deps DecoratorRequestServiceDeps) (DecoratorRequestService, error) {
	if deps.Requests == nil {
		return nil, errors.New("decorator request service requires request repository")
	}
	if deps.Users == nil {
		return nil, errors.New("decorator request service requires user repository")
	}
	if deps.Access == nil {
		return nil, errors.New("decorator request service requires access control")
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

	return &decoratorRequestService{
		requests:  deps.Requests,
		users:     deps.Users,
		access:    deps.Access,
		publisher: deps.Publisher,
		clock:     func() time.Time { return clock().UTC() },
		newID:     newID,
		logger:    logger,
	}, nil
}

func (s *decoratorRequestService) Submit(ctx context.Context, cmd SubmitDecoratorRequestCommand) (domain.DecoratorRequest, error) {
	caller, err := s.access.Caller(ctx)
	if err != nil {
		return domain.DecoratorRequest{}, err
	}

	// A second submission acknowledges the existing request instead of
	// queueing another one for the same address.
	existing, err := s.requests.FindByEmail(ctx, caller.Email)
	if err == nil {
		return existing, nil
	}
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		return domain.DecoratorRequest{}, err
	}

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = caller.Name
	}
	if name == "" {
		return domain.DecoratorRequest{}, ErrRequestInvalidInput
	}

	request := domain.DecoratorRequest{
		ID:         s.newID(),
		Email:      caller.Email,
		Name:       name,
		Speciality: strings.TrimSpace(cmd.Speciality),
		Experience: strings.TrimSpace(cmd.Experience),
		Status:     domain.RequestStatusPending,
		CreatedAt:  s.clock(),
	}

	if err := s.requests.Insert(ctx, request); err != nil {
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			// Lost a race with a concurrent submission for the same address.
			return s.requests.FindByEmail(ctx, caller.Email)
		}
		return domain.DecoratorRequest{}, err
	}

	s.logger(ctx, "decorator_requests.submitted", map[string]any{
		"requestId": request.ID,
	})
	return request, nil
}

func (s *decoratorRequestService) ListRequests(ctx context.Context, status string) ([]domain.DecoratorRequest, error) {
	if _, err := s.access.Require(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}

	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", domain.RequestStatusPending, domain.RequestStatusApproved, domain.RequestStatusRejected:
	default:
		return nil, ErrRequestInvalidInput
	}
	return s.requests.List(ctx, status)
}

func (s *decoratorRequestService) Decide(ctx context.Context, requestID string, approve bool) (domain.DecoratorRequest, error) {
	if _, err := s.access.Require(ctx, domain.RoleAdmin); err != nil {
		return domain.DecoratorRequest{}, err
	}

	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return domain.DecoratorRequest{}, ErrRequestInvalidInput
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.DecoratorRequest{}, ErrRequestNotFound
		}
		return domain.DecoratorRequest{}, err
	}

	if !approve {
		if err := s.requests.UpdateStatus(ctx, requestID, domain.RequestStatusRejected); err != nil {
			return domain.DecoratorRequest{}, err
		}
		request.Status = domain.RequestStatusRejected
		s.logger(ctx, "decorator_requests.rejected", map[string]any{
			"requestId": requestID,
		})
		return request, nil
	}

	// Approval is two writes across collections. The store offers atomicity
	// per document only, so a failed role grant after the status write leaves
	// a state the operator must be able to distinguish.
	if err := s.requests.UpdateStatus(ctx, requestID, domain.RequestStatusApproved); err != nil {
		return domain.DecoratorRequest{}, err
	}
	request.Status = domain.RequestStatusApproved

	if err := s.users.UpdateRole(ctx, request.Email, domain.RoleDecorator); err != nil {
		s.logger(ctx, "decorator_requests.partially_applied", map[string]any{
			"requestId": requestID,
		})
		return request, fmt.Errorf("%w: %v", ErrPromotionPartiallyApplied, err)
	}

	s.logger(ctx, "decorator_requests.approved", map[string]any{
		"requestId": requestID,
	})

	if s.publisher != nil {
		message := BookingEventMessage{
			Event:      "decorator.promoted",
			UserEmail:  request.Email,
			OccurredAt: s.clock(),
		}
		if _, err := s.publisher.PublishBookingEvent(ctx, message); err != nil {
			s.logger(ctx, "decorator_requests.event_publish_failed", map[string]any{
				"requestId": requestID,
			})
		}
	}
	return request, nil
}
