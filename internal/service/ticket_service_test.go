package service

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/ratelimit"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }
func (f *fakeUserRepo) Update(ctx context.Context, user *domain.User) error { return nil }

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, errors.New("user not found")
}

type enqueuedJob struct {
	TicketID string
	Force    bool
}

type fakeDispatchQueue struct {
	jobs []enqueuedJob
	err  error
}

func (f *fakeDispatchQueue) Enqueue(ctx context.Context, ticketID string, force bool) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueuedJob{TicketID: ticketID, Force: force})
	return nil
}

// fixedWindowStore returns a scripted sequence of counts.
type fixedWindowStore struct {
	counts []int64
	ttl    time.Duration
	idx    int
}

func (f *fixedWindowStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count := f.counts[f.idx]
	if f.idx < len(f.counts)-1 {
		f.idx++
	}
	return count, f.ttl, nil
}

func newTicketServiceForTest(repo *fakeTicketRepo, users *fakeUserRepo, dispatch *fakeDispatchQueue, limiter *ratelimit.Limiter) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:     repo,
		UserRepo:       users,
		ClassifyQueue:  dispatch,
		ClassifyLimits: limiter,
		Logger:         zap.NewNop(),
	})
}

func testUser(id string, role domain.UserRole) *domain.User {
	return &domain.User{ID: id, Name: "Jo Doe", Email: id + "@example.com", Role: role}
}

func TestCreateTicketQueuesClassification(t *testing.T) {
	repo := newFakeTicketRepo()
	dispatch := &fakeDispatchQueue{}
	svc := newTicketServiceForTest(repo, &fakeUserRepo{}, dispatch, nil)

	ticket, err := svc.CreateTicket(context.Background(), testUser("u1", domain.UserRoleUser), TicketCreateInput{
		Title:       "  VPN keeps dropping ",
		Description: "disconnects every few minutes",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Status != domain.TicketStatusActive {
		t.Errorf("status = %q, want active default", ticket.Status)
	}
	if ticket.Title != "VPN keeps dropping" {
		t.Errorf("title not trimmed: %q", ticket.Title)
	}
	if len(dispatch.jobs) != 1 || dispatch.jobs[0].Force {
		t.Errorf("expected one non-forced job, got %+v", dispatch.jobs)
	}
}

func TestCreateTicketRejectsInvalidStatus(t *testing.T) {
	svc := newTicketServiceForTest(newFakeTicketRepo(), &fakeUserRepo{}, &fakeDispatchQueue{}, nil)

	_, err := svc.CreateTicket(context.Background(), testUser("u1", domain.UserRoleUser), TicketCreateInput{
		Title:       "t",
		Description: "d",
		Status:      domain.TicketStatus("Z"),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCreateTicketSurvivesEnqueueFailure(t *testing.T) {
	repo := newFakeTicketRepo()
	dispatch := &fakeDispatchQueue{err: errors.New("redis down")}
	svc := newTicketServiceForTest(repo, &fakeUserRepo{}, dispatch, nil)

	ticket, err := svc.CreateTicket(context.Background(), testUser("u1", domain.UserRoleUser), TicketCreateInput{
		Title:       "t",
		Description: "d",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, ok := repo.tickets[ticket.ID]; !ok {
		t.Error("ticket not persisted")
	}
}

func TestListTicketsScopesNonManagersToOwnTickets(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTicketServiceForTest(repo, &fakeUserRepo{}, &fakeDispatchQueue{}, nil)

	if _, err := svc.ListTickets(context.Background(), testUser("u1", domain.UserRoleUser), TicketListFilter{}); err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if repo.listFilter.UserID == nil || *repo.listFilter.UserID != "u1" {
		t.Errorf("user filter = %v, want u1", repo.listFilter.UserID)
	}

	if _, err := svc.ListTickets(context.Background(), testUser("m1", domain.UserRoleManager), TicketListFilter{}); err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if repo.listFilter.UserID != nil {
		t.Errorf("manager listing should be unscoped, got %v", *repo.listFilter.UserID)
	}
}

func TestGetTicketDeniesOtherUsers(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", UserID: "owner"}
	svc := newTicketServiceForTest(newFakeTicketRepo(ticket), &fakeUserRepo{}, &fakeDispatchQueue{}, nil)

	if _, err := svc.GetTicket(context.Background(), testUser("intruder", domain.UserRoleUser), "t1"); err == nil {
		t.Fatal("expected forbidden error")
	}
	if _, err := svc.GetTicket(context.Background(), testUser("m1", domain.UserRoleManager), "t1"); err != nil {
		t.Fatalf("manager access: %v", err)
	}
}

func TestUpdateTicketRejectsUnknownCategory(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", UserID: "u1"}
	svc := newTicketServiceForTest(newFakeTicketRepo(ticket), &fakeUserRepo{}, &fakeDispatchQueue{}, nil)

	_, err := svc.UpdateTicket(context.Background(), testUser("u1", domain.UserRoleUser), "t1", TicketUpdateInput{
		Category: strPtr("Gardening"),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	if _, err := svc.UpdateTicket(context.Background(), testUser("u1", domain.UserRoleUser), "t1", TicketUpdateInput{
		Category: strPtr("Billing"),
	}); err != nil {
		t.Fatalf("valid category rejected: %v", err)
	}
}

func TestClassifyNowRateLimited(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", UserID: "u1"}
	store := &fixedWindowStore{counts: []int64{11}, ttl: 42 * time.Second}
	limiter := ratelimit.NewLimiter(store, "test", 10, time.Minute)
	dispatch := &fakeDispatchQueue{}
	svc := newTicketServiceForTest(newFakeTicketRepo(ticket), &fakeUserRepo{}, dispatch, limiter)

	err := svc.ClassifyNow(context.Background(), testUser("u1", domain.UserRoleUser), "t1")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Code != "RATE_LIMITED" {
		t.Fatalf("code = %q, want RATE_LIMITED", domainErr.Code)
	}
	if retry, ok := domainErr.Details["retry_after"].(int); !ok || retry != 42 {
		t.Errorf("retry_after = %v, want 42", domainErr.Details["retry_after"])
	}
	if len(dispatch.jobs) != 0 {
		t.Errorf("job enqueued despite rate limit")
	}
}

func TestClassifyNowQueuesForcedJob(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", UserID: "u1"}
	store := &fixedWindowStore{counts: []int64{1}, ttl: time.Minute}
	limiter := ratelimit.NewLimiter(store, "test", 10, time.Minute)
	dispatch := &fakeDispatchQueue{}
	svc := newTicketServiceForTest(newFakeTicketRepo(ticket), &fakeUserRepo{}, dispatch, limiter)

	if err := svc.ClassifyNow(context.Background(), testUser("u1", domain.UserRoleUser), "t1"); err != nil {
		t.Fatalf("ClassifyNow: %v", err)
	}
	if len(dispatch.jobs) != 1 || !dispatch.jobs[0].Force {
		t.Fatalf("expected one forced job, got %+v", dispatch.jobs)
	}
}

func TestExportCSV(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	ticket := &domain.Ticket{
		ID:          "t1",
		UserID:      "u1",
		Title:       "invoice question",
		Description: "why was I charged",
		Status:      domain.TicketStatusCompleted,
		Category:    strPtr("Billing"),
		Confidence:  floatPtr(0.87),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	users := &fakeUserRepo{users: map[string]*domain.User{
		"u1": testUser("u1", domain.UserRoleUser),
	}}
	svc := newTicketServiceForTest(newFakeTicketRepo(ticket), users, &fakeDispatchQueue{}, nil)

	var buf strings.Builder
	if err := svc.ExportCSV(context.Background(), testUser("m1", domain.UserRoleManager), TicketListFilter{}, &buf); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(records))
	}
	header := strings.Join(records[0], ",")
	if header != "ID,Title,Description,Status,Category,Confidence,Notes,Author,Created At,Updated At" {
		t.Errorf("unexpected header %q", header)
	}
	row := records[1]
	if row[3] != "Completed" {
		t.Errorf("status label = %q, want Completed", row[3])
	}
	if row[5] != "87.00%" {
		t.Errorf("confidence = %q, want 87.00%%", row[5])
	}
	if row[7] != "Jo Doe" {
		t.Errorf("author = %q", row[7])
	}
	if row[8] != "2026-03-14 09:30:00" {
		t.Errorf("created at = %q", row[8])
	}
}

func TestExportFileName(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 15, 0, time.UTC)
	if got := ExportFileName(now); got != "tickets_2026-03-14_09-30-15.csv" {
		t.Fatalf("ExportFileName = %q", got)
	}
}
