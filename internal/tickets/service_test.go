package tickets

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/auth"
	"github.com/evecs/backend/internal/events"
	"github.com/evecs/backend/internal/locations"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/schema"
	"github.com/evecs/backend/internal/store"
	"github.com/evecs/backend/internal/vocab"
)

const (
	creatorID  = "user-creator"
	holderID   = "user-holder"
	locationID = "loc-campus"
	roomID     = "room-hall"
)

type fixture struct {
	svc    *Service
	events *events.Service
	users  *auth.Repository
	evRepo *events.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	voc, err := vocab.New(ctx, vocab.Static{
		Groups: []string{"society"},
		Tags:   []string{"music"},
	})
	if err != nil {
		t.Fatalf("vocab: %v", err)
	}
	oracle := schema.New()
	logger := zap.NewNop()

	eventRepo := events.NewRepository(mem)
	locationRepo := locations.NewRepository(mem)
	userRepo := auth.NewRepository(mem)
	eventSvc := events.NewService(eventRepo, locationRepo, userRepo, voc, oracle, logger, 0)

	ticketRepo := NewRepository(mem)
	svc := NewService(ticketRepo, eventRepo, userRepo, oracle, logger, 10)
	eventSvc.SetTicketPurger(svc)

	users := []models.User{
		{UserID: creatorID, Email: "creator@example.com", PasswordHash: "x", Authorized: true},
		{UserID: holderID, Email: "holder@example.com", PasswordHash: "x"},
	}
	for i := range users {
		if err := userRepo.Create(ctx, &users[i]); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	loc := &models.Location{
		LocationID: locationID,
		Name:       "Campus",
		Rooms:      []models.Room{{RoomID: roomID, Name: "Hall", Capacity: 200}},
	}
	if err := locationRepo.Insert(ctx, loc); err != nil {
		t.Fatalf("seed location: %v", err)
	}

	return &fixture{svc: svc, events: eventSvc, users: userRepo, evRepo: eventRepo}
}

func (f *fixture) newEvent(t *testing.T, maxTickets uint) *models.Event {
	t.Helper()
	ev, err := f.events.Create(context.Background(), events.CreateRequest{
		UserID:      creatorID,
		Name:        "Spring Concert",
		Description: "Open-air concert",
		Groups:      []string{"society"},
		Tags:        []string{"music"},
		LocationID:  locationID,
		RoomID:      roomID,
		StartTime:   "2026-05-01T18:00:00Z",
		EndTime:     "2026-05-01T22:00:00Z",
		MaxTickets:  &maxTickets,
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return ev
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if apperr.KindOf(err) != kind {
		t.Fatalf("error kind = %v (%v), want %v", apperr.KindOf(err), err, kind)
	}
}

func TestCreateEventFullAtCapacityOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.newEvent(t, 1)

	if _, err := f.svc.Create(ctx, holderID, ev.EventID, "first@example.com"); err != nil {
		t.Fatalf("first ticket: %v", err)
	}
	_, err := f.svc.Create(ctx, holderID, ev.EventID, "second@example.com")
	wantKind(t, err, apperr.KindEventFull)
}

func TestCreateDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.newEvent(t, 10)

	if _, err := f.svc.Create(ctx, holderID, ev.EventID, "a@x.com"); err != nil {
		t.Fatalf("first ticket: %v", err)
	}
	_, err := f.svc.Create(ctx, holderID, ev.EventID, "a@x.com")
	wantKind(t, err, apperr.KindDuplicateEmail)

	// Case-folded addresses collide too, and the counter stays accurate.
	_, err = f.svc.Create(ctx, holderID, ev.EventID, "A@X.com")
	wantKind(t, err, apperr.KindDuplicateEmail)

	got, _, err := f.evRepo.Get(ctx, ev.EventID)
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if got.TicketsIssued != 1 {
		t.Errorf("tickets_issued = %d, want 1", got.TicketsIssued)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.newEvent(t, 10)

	cases := []struct {
		name                   string
		userID, eventID, email string
		kind                   apperr.Kind
	}{
		{"missing event", holderID, "", "a@x.com", apperr.KindMissingField},
		{"missing email", holderID, ev.EventID, "", apperr.KindMissingField},
		{"missing user", "", ev.EventID, "a@x.com", apperr.KindMissingField},
		{"bad email shape", holderID, ev.EventID, "not-an-email", apperr.KindTypeMismatch},
		{"unknown user", "user-ghost", ev.EventID, "a@x.com", apperr.KindUserNotFound},
		{"unknown event", holderID, "ev-ghost", "a@x.com", apperr.KindEventNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.userID, tc.eventID, tc.email)
			wantKind(t, err, tc.kind)
		})
	}
}

func TestConcurrentIssuanceHonorsCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const capacity = 5
	const workers = 12
	ev := f.newEvent(t, capacity)

	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("guest%d@example.com", i)
			_, results[i] = f.svc.Create(ctx, holderID, ev.EventID, email)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		switch apperr.KindOf(err) {
		case apperr.KindEventFull, apperr.KindConflict:
		default:
			t.Errorf("unexpected failure kind: %v", err)
		}
	}
	if successes != capacity {
		t.Fatalf("successes = %d, want exactly %d", successes, capacity)
	}

	got, _, err := f.evRepo.Get(ctx, ev.EventID)
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if got.TicketsIssued != capacity {
		t.Errorf("tickets_issued = %d, want %d", got.TicketsIssued, capacity)
	}
	list, err := f.svc.ListByEvent(ctx, ev.EventID, creatorID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != capacity {
		t.Errorf("%d tickets persisted, want %d", len(list), capacity)
	}
}

func TestValidateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.newEvent(t, 10)

	ticket, err := f.svc.Create(ctx, holderID, ev.EventID, "holder@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Wrong code leaves the ticket untouched.
	_, err = f.svc.Validate(ctx, ticket.TicketID, holderID, "WRONG1")
	wantKind(t, err, apperr.KindInvalidCode)
	got, err := f.svc.Get(ctx, ticket.TicketID, holderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Validated {
		t.Fatal("ticket validated despite wrong code")
	}

	// Only the owner may present the code.
	_, err = f.svc.Validate(ctx, ticket.TicketID, creatorID, ev.Code)
	wantKind(t, err, apperr.KindNotTicketOwner)

	validated, err := f.svc.Validate(ctx, ticket.TicketID, holderID, ev.Code)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !validated.Validated {
		t.Fatal("ticket not validated with correct code")
	}

	// Re-presenting the code is a no-op, never a rollback.
	again, err := f.svc.Validate(ctx, ticket.TicketID, holderID, ev.Code)
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if !again.Validated {
		t.Fatal("validated is terminal")
	}
}

func TestDeleteFreesCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.newEvent(t, 1)

	ticket, err := f.svc.Create(ctx, holderID, ev.EventID, "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.svc.Delete(ctx, ticket.TicketID, holderID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := f.svc.Create(ctx, holderID, ev.EventID, "b@x.com"); err != nil {
		t.Fatalf("slot not freed after delete: %v", err)
	}
}

func TestDeleteRequiresOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.newEvent(t, 5)

	ticket, err := f.svc.Create(ctx, holderID, ev.EventID, "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	outsider := &models.User{UserID: "user-other", Email: "other@example.com", PasswordHash: "x"}
	if err := f.users.Create(ctx, outsider); err != nil {
		t.Fatalf("seed outsider: %v", err)
	}
	err = f.svc.Delete(ctx, ticket.TicketID, outsider.UserID)
	wantKind(t, err, apperr.KindNotTicketOwner)

	// An event admin may revoke tickets.
	if err := f.svc.Delete(ctx, ticket.TicketID, creatorID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestEventDeleteCascadesTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.newEvent(t, 10)

	for i := 0; i < 3; i++ {
		email := fmt.Sprintf("guest%d@example.com", i)
		if _, err := f.svc.Create(ctx, holderID, ev.EventID, email); err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
	}

	n, err := f.events.Delete(ctx, ev.EventID, creatorID)
	if err != nil {
		t.Fatalf("event delete: %v", err)
	}
	if n != 3 {
		t.Errorf("cascade deleted %d tickets, want 3", n)
	}

	list, err := f.svc.ListByUser(ctx, holderID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("%d tickets survived the cascade", len(list))
	}
}
