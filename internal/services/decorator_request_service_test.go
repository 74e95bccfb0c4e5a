package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/repositories"
)

func newRequestService(t *testing.T, requests repositories.DecoratorRequestRepository, users *stubUserRepo, publisher BookingEventPublisher) DecoratorRequestService {
	t.Helper()
	access, err := NewAccessControl(users)
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	svc, err := NewDecoratorRequestService(DecoratorRequestServiceDeps{
		Requests:  requests,
		Users:     users,
		Access:    access,
		Publisher: publisher,
		Clock:     func() time.Time { return time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC) },
		IDs:       func() string { return "dr_test" },
	})
	if err != nil {
		t.Fatalf("NewDecoratorRequestService: %v", err)
	}
	return svc
}

func adminUserRepo(extra map[string]string) *stubUserRepo {
	roles := map[string]string{"admin@example.com": domain.RoleAdmin}
	for email, role := range extra {
		roles[email] = role
	}
	return roleRepo(roles)
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	var inserted domain.DecoratorRequest
	requests := &stubRequestRepo{
		insertFn: func(_ context.Context, request domain.DecoratorRequest) error {
			inserted = request
			return nil
		},
	}
	svc := newRequestService(t, requests, roleRepo(nil), nil)

	request, err := svc.Submit(identityCtx("applicant@example.com"), SubmitDecoratorRequestCommand{
		Name:       "Avery",
		Speciality: "floral",
		Experience: "4 years",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if inserted.Status != domain.RequestStatusPending {
		t.Fatalf("expected pending status, got %q", inserted.Status)
	}
	if inserted.Email != "applicant@example.com" {
		t.Fatalf("expected caller email, got %q", inserted.Email)
	}
	if request.ID != "dr_test" {
		t.Fatalf("expected generated id, got %q", request.ID)
	}
}

func TestSubmitDuplicateAcknowledgesExisting(t *testing.T) {
	existing := domain.DecoratorRequest{ID: "dr_existing", Email: "applicant@example.com", Status: domain.RequestStatusPending}
	inserts := 0
	requests := &stubRequestRepo{
		findByEmailFn: func(context.Context, string) (domain.DecoratorRequest, error) {
			return existing, nil
		},
		insertFn: func(context.Context, domain.DecoratorRequest) error {
			inserts++
			return nil
		},
	}
	svc := newRequestService(t, requests, roleRepo(nil), nil)

	request, err := svc.Submit(identityCtx("applicant@example.com"), SubmitDecoratorRequestCommand{Name: "Avery"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if request.ID != "dr_existing" {
		t.Fatalf("expected existing request back, got %q", request.ID)
	}
	if inserts != 0 {
		t.Fatalf("duplicate submission must not insert, got %d inserts", inserts)
	}
}

func TestDecideApproveGrantsRole(t *testing.T) {
	requestStatus := ""
	requests := &stubRequestRepo{
		findFn: func(_ context.Context, requestID string) (domain.DecoratorRequest, error) {
			return domain.DecoratorRequest{ID: requestID, Email: "applicant@example.com", Status: domain.RequestStatusPending}, nil
		},
		updateStatusFn: func(_ context.Context, _ string, status string) error {
			requestStatus = status
			return nil
		},
	}
	users := adminUserRepo(nil)
	grantedRole := ""
	users.updateRoleFn = func(_ context.Context, email string, role string) error {
		if email != "applicant@example.com" {
			t.Fatalf("unexpected grant target %q", email)
		}
		grantedRole = role
		return nil
	}
	publisher := &stubPublisher{}
	svc := newRequestService(t, requests, users, publisher)

	request, err := svc.Decide(identityCtx("admin@example.com"), "dr_1", true)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if requestStatus != domain.RequestStatusApproved || request.Status != domain.RequestStatusApproved {
		t.Fatalf("expected approved status, got %q / %q", requestStatus, request.Status)
	}
	if grantedRole != domain.RoleDecorator {
		t.Fatalf("expected decorator role grant, got %q", grantedRole)
	}
	if len(publisher.messages) != 1 || publisher.messages[0].Event != "decorator.promoted" {
		t.Fatalf("expected promotion event, got %#v", publisher.messages)
	}
}

func TestDecideRejectLeavesRoleUntouched(t *testing.T) {
	requests := &stubRequestRepo{
		findFn: func(_ context.Context, requestID string) (domain.DecoratorRequest, error) {
			return domain.DecoratorRequest{ID: requestID, Email: "applicant@example.com", Status: domain.RequestStatusPending}, nil
		},
		updateStatusFn: func(context.Context, string, string) error { return nil },
	}
	users := adminUserRepo(nil)
	users.updateRoleFn = func(context.Context, string, string) error {
		t.Fatal("rejection must not touch the role")
		return nil
	}
	svc := newRequestService(t, requests, users, nil)

	request, err := svc.Decide(identityCtx("admin@example.com"), "dr_1", false)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if request.Status != domain.RequestStatusRejected {
		t.Fatalf("expected rejected status, got %q", request.Status)
	}
}

func TestDecideApprovePartialFailure(t *testing.T) {
	requests := &stubRequestRepo{
		findFn: func(_ context.Context, requestID string) (domain.DecoratorRequest, error) {
			return domain.DecoratorRequest{ID: requestID, Email: "applicant@example.com", Status: domain.RequestStatusPending}, nil
		},
		updateStatusFn: func(context.Context, string, string) error { return nil },
	}
	users := adminUserRepo(nil)
	users.updateRoleFn = func(context.Context, string, string) error {
		return errors.New("registry write failed")
	}
	svc := newRequestService(t, requests, users, nil)

	request, err := svc.Decide(identityCtx("admin@example.com"), "dr_1", true)
	if !errors.Is(err, ErrPromotionPartiallyApplied) {
		t.Fatalf("expected ErrPromotionPartiallyApplied, got %v", err)
	}
	if request.Status != domain.RequestStatusApproved {
		t.Fatalf("partial failure still reflects the approved request, got %q", request.Status)
	}
}

func TestDecideRequiresAdmin(t *testing.T) {
	svc := newRequestService(t, &stubRequestRepo{}, roleRepo(nil), nil)
	if _, err := svc.Decide(identityCtx("guest@example.com"), "dr_1", true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestListRequestsValidatesStatus(t *testing.T) {
	svc := newRequestService(t, &stubRequestRepo{}, adminUserRepo(nil), nil)
	ctx := identityCtx("admin@example.com")

	if _, err := svc.ListRequests(ctx, "pending"); err != nil {
		t.Fatalf("ListRequests pending: %v", err)
	}
	if _, err := svc.ListRequests(ctx, "weird"); !errors.Is(err, ErrRequestInvalidInput) {
		t.Fatalf("expected ErrRequestInvalidInput, got %v", err)
	}
}
