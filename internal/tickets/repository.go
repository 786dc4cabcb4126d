package tickets

import (
	"context"
	"errors"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/store"
)

// Repository handles ticket persistence. Tickets are stored under the
// composite key from models.TicketKey, so the store's insert uniqueness is
// the per-event email constraint.
type Repository struct {
	store store.Store
}

// NewRepository creates a tickets repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// Get returns a ticket and its document version by ticket id.
func (r *Repository) Get(ctx context.Context, ticketID string) (*models.Ticket, store.Version, error) {
	var t models.Ticket
	ver, err := r.store.FindOne(ctx, models.CollectionTickets, store.Eq("ticket_id", ticketID), &t)
	if err != nil {
		return nil, 0, mapTicketErr(err, ticketID)
	}
	return &t, ver, nil
}

// Insert stores a new ticket. ErrDuplicateKey propagates raw so the issuance
// pipeline can compensate its counter before classifying the failure.
func (r *Repository) Insert(ctx context.Context, t *models.Ticket) error {
	err := r.store.Insert(ctx, models.CollectionTickets, models.TicketKey(t.EventID, t.Email), t)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return err
		}
		return mapTicketErr(err, t.TicketID)
	}
	return nil
}

// Replace swaps the ticket document under optimistic concurrency.
func (r *Repository) Replace(ctx context.Context, t *models.Ticket, expected store.Version) (store.Version, error) {
	ver, err := r.store.Replace(ctx, models.CollectionTickets, models.TicketKey(t.EventID, t.Email), t, expected)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return 0, err
		}
		return 0, mapTicketErr(err, t.TicketID)
	}
	return ver, nil
}

// Delete removes a ticket document.
func (r *Repository) Delete(ctx context.Context, t *models.Ticket) error {
	if err := r.store.Delete(ctx, models.CollectionTickets, models.TicketKey(t.EventID, t.Email)); err != nil {
		return mapTicketErr(err, t.TicketID)
	}
	return nil
}

// FindByEventAndEmail is the advisory pre-check for per-event uniqueness; the
// insert key is what actually enforces it.
func (r *Repository) FindByEventAndEmail(ctx context.Context, eventID, email string) (*models.Ticket, error) {
	var t models.Ticket
	_, err := r.store.FindOne(ctx, models.CollectionTickets,
		store.Eq("event_id", eventID, "email", email), &t)
	if err != nil {
		return nil, mapTicketErr(err, eventID)
	}
	return &t, nil
}

// ListByEvent returns every ticket issued against an event.
func (r *Repository) ListByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var out []models.Ticket
	if err := r.store.Find(ctx, models.CollectionTickets, store.Eq("event_id", eventID), &out); err != nil {
		return nil, mapTicketErr(err, eventID)
	}
	return out, nil
}

// ListByUser returns every ticket owned by a user.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	var out []models.Ticket
	if err := r.store.Find(ctx, models.CollectionTickets, store.Eq("user_id", userID), &out); err != nil {
		return nil, mapTicketErr(err, userID)
	}
	return out, nil
}

// CountByEvent counts tickets issued against an event.
func (r *Repository) CountByEvent(ctx context.Context, eventID string) (int64, error) {
	n, err := r.store.Count(ctx, models.CollectionTickets, store.Eq("event_id", eventID))
	if err != nil {
		return 0, mapTicketErr(err, eventID)
	}
	return n, nil
}

func mapTicketErr(err error, ref string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Newf(apperr.KindTicketNotFound, "ticket_id", "ticket %q not found", ref)
	case errors.Is(err, store.ErrTimeout):
		return apperr.Wrap(apperr.KindTimeout, err, "ticket lookup timed out")
	default:
		return apperr.Wrap(apperr.KindStoreFault, err, "ticket store failure")
	}
}
