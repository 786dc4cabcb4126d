package tickets

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/auth"
	"github.com/evecs/backend/internal/events"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/schema"
	"github.com/evecs/backend/internal/store"
)

// Service runs the ticket issuance pipeline. Capacity is enforced with a
// counter on the event document advanced by compare-and-swap with a ceiling
// check, so N concurrent issuances against capacity K admit exactly
// min(N, K); the ticket insert key enforces one ticket per email per event.
type Service struct {
	tickets  *Repository
	events   *events.Repository
	users    *auth.Repository
	oracle   *schema.Oracle
	logger   *zap.Logger
	attempts int
}

// NewService creates the issuance service.
func NewService(tickets *Repository, evs *events.Repository, users *auth.Repository,
	oracle *schema.Oracle, logger *zap.Logger, attempts int) *Service {
	if attempts <= 0 {
		attempts = store.DefaultMaxAttempts
	}
	return &Service{
		tickets:  tickets,
		events:   evs,
		users:    users,
		oracle:   oracle,
		logger:   logger,
		attempts: attempts,
	}
}

// Create issues a ticket. Checks run in a fixed order with no side effects
// until the counter advance; a duplicate insert after the advance compensates
// the counter before the rejection surfaces.
func (s *Service) Create(ctx context.Context, userID, eventID, email string) (*models.Ticket, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, apperr.New(apperr.KindMissingField, "event_id", "missing mandatory field: event_id")
	}
	if strings.TrimSpace(email) == "" {
		return nil, apperr.New(apperr.KindMissingField, "email", "missing mandatory field: email")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.New(apperr.KindMissingField, "user_id", "missing mandatory field: user_id")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.oracle.ValidEmail(email) {
		return nil, apperr.Newf(apperr.KindTypeMismatch, "email", "%q is not a valid email address", email)
	}

	// Advisory read for a clean error message; the insert key is the
	// actual uniqueness guarantee.
	if _, err := s.tickets.FindByEventAndEmail(ctx, eventID, email); err == nil {
		return nil, apperr.Newf(apperr.KindDuplicateEmail, "email", "email %q already holds a ticket for event %q", email, eventID)
	} else if apperr.KindOf(err) != apperr.KindTicketNotFound {
		return nil, err
	}

	if _, _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if _, _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}

	t := &models.Ticket{
		TicketID:  uuid.New().String(),
		EventID:   eventID,
		UserID:    userID,
		Email:     email,
		Validated: false,
	}

	if err := s.advanceCounter(ctx, eventID); err != nil {
		return nil, err
	}
	// Shape is the last gate; a rejection here must give the slot back.
	if err := s.oracle.Validate(t); err != nil {
		s.compensateCounter(ctx, eventID)
		return nil, err
	}
	if err := s.tickets.Insert(ctx, t); err != nil {
		s.compensateCounter(ctx, eventID)
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperr.Newf(apperr.KindDuplicateEmail, "email", "email %q already holds a ticket for event %q", email, eventID)
		}
		return nil, err
	}
	s.logger.Info("ticket issued",
		zap.String("ticket_id", t.TicketID),
		zap.String("event_id", eventID))
	return t, nil
}

// Get returns a ticket to its owner or an event admin.
func (s *Service) Get(ctx context.Context, ticketID, callerID string) (*models.Ticket, error) {
	t, _, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrAdmin(ctx, t, callerID); err != nil {
		return nil, err
	}
	return t, nil
}

// ListByEvent returns an event's tickets to one of its admins.
func (s *Service) ListByEvent(ctx context.Context, eventID, callerID string) ([]models.Ticket, error) {
	ev, _, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsCreator(callerID) {
		return nil, apperr.Newf(apperr.KindUnauthorized, "user_id", "user %q is not an admin of event %q", callerID, eventID)
	}
	return s.tickets.ListByEvent(ctx, eventID)
}

// ListByUser returns the caller's own tickets.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.tickets.ListByUser(ctx, userID)
}

// Validate flips a ticket to validated when its owner presents the event's
// staff code. Validated is terminal; re-presenting the code is a no-op.
func (s *Service) Validate(ctx context.Context, ticketID, userID, code string) (*models.Ticket, error) {
	var out *models.Ticket
	err := store.WithRetry(ctx, s.attempts, func() error {
		t, ver, err := s.tickets.Get(ctx, ticketID)
		if err != nil {
			return err
		}
		if t.UserID != userID {
			return apperr.Newf(apperr.KindNotTicketOwner, "user_id", "ticket %q belongs to another user", ticketID)
		}
		ev, _, err := s.events.Get(ctx, t.EventID)
		if err != nil {
			return err
		}
		if ev.Code != code {
			return apperr.New(apperr.KindInvalidCode, "code", "wrong validation code")
		}
		if t.Validated {
			out = t
			return nil
		}
		t.Validated = true
		if _, err := s.tickets.Replace(ctx, t, ver); err != nil {
			return err
		}
		out = t
		return nil
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.Wrap(apperr.KindConflict, err, "ticket was modified concurrently, retry")
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket validated", zap.String("ticket_id", ticketID))
	return out, nil
}

// Delete removes a ticket on behalf of its owner or an event admin and frees
// its capacity slot.
func (s *Service) Delete(ctx context.Context, ticketID, callerID string) error {
	t, _, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := s.requireOwnerOrAdmin(ctx, t, callerID); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, t); err != nil {
		return err
	}
	s.compensateCounter(ctx, t.EventID)
	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID))
	return nil
}

// DeleteByEvent removes every ticket of an event and reports how many went.
// Used by the event deletion cascade, which runs before the event document
// itself is removed; the counter is left alone since the event is going away.
func (s *Service) DeleteByEvent(ctx context.Context, eventID string) (int, error) {
	list, err := s.tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for i := range list {
		if err := s.tickets.Delete(ctx, &list[i]); err != nil {
			if apperr.KindOf(err) == apperr.KindTicketNotFound {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *Service) requireOwnerOrAdmin(ctx context.Context, t *models.Ticket, callerID string) error {
	if t.UserID == callerID {
		return nil
	}
	ev, _, err := s.events.Get(ctx, t.EventID)
	if err == nil && ev.IsCreator(callerID) {
		return nil
	}
	return apperr.Newf(apperr.KindNotTicketOwner, "user_id", "ticket %q belongs to another user", t.TicketID)
}

// advanceCounter bumps tickets_issued under the event's version, rejecting
// EventFull at the ceiling. Losing the CAS race retries against the fresh
// counter.
func (s *Service) advanceCounter(ctx context.Context, eventID string) error {
	err := store.WithRetry(ctx, s.attempts, func() error {
		ev, ver, err := s.events.Get(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.TicketsIssued >= ev.MaxTickets {
			return apperr.Newf(apperr.KindEventFull, "event_id", "event %q is sold out", eventID)
		}
		ev.TicketsIssued++
		_, err = s.events.Replace(ctx, ev, ver)
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		return apperr.Wrap(apperr.KindConflict, err, "ticket counter contention, retry")
	}
	return err
}

// compensateCounter undoes one counter advance. Best effort with a floor at
// zero; a failure is logged, the safe direction is an overstated counter.
func (s *Service) compensateCounter(ctx context.Context, eventID string) {
	err := store.WithRetry(ctx, s.attempts, func() error {
		ev, ver, err := s.events.Get(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.TicketsIssued == 0 {
			return nil
		}
		ev.TicketsIssued--
		_, err = s.events.Replace(ctx, ev, ver)
		return err
	})
	if err != nil && apperr.KindOf(err) != apperr.KindEventNotFound {
		s.logger.Error("ticket counter compensation failed",
			zap.String("event_id", eventID), zap.Error(err))
	}
}
