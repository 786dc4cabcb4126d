package events

import (
	"context"
	"errors"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/store"
)

// Repository handles event persistence, keyed by event_id. The document
// version doubles as the concurrency token for the tickets_issued counter.
type Repository struct {
	store store.Store
}

// NewRepository creates an events repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// Get returns an event and its document version.
func (r *Repository) Get(ctx context.Context, eventID string) (*models.Event, store.Version, error) {
	var ev models.Event
	ver, err := r.store.FindOne(ctx, models.CollectionEvents, store.Eq("event_id", eventID), &ev)
	if err != nil {
		return nil, 0, mapEventErr(err, eventID)
	}
	return &ev, ver, nil
}

// Find returns events matching the filter.
func (r *Repository) Find(ctx context.Context, f store.Filter) ([]models.Event, error) {
	var out []models.Event
	if err := r.store.Find(ctx, models.CollectionEvents, f, &out); err != nil {
		return nil, mapEventErr(err, "")
	}
	return out, nil
}

// Insert stores a new event document.
func (r *Repository) Insert(ctx context.Context, ev *models.Event) error {
	if err := r.store.Insert(ctx, models.CollectionEvents, ev.EventID, ev); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return apperr.Newf(apperr.KindConflict, "event_id", "event %q already exists", ev.EventID)
		}
		return mapEventErr(err, ev.EventID)
	}
	return nil
}

// Replace swaps the event document under optimistic concurrency. ErrConflict
// propagates raw so counter and patch loops can retry.
func (r *Repository) Replace(ctx context.Context, ev *models.Event, expected store.Version) (store.Version, error) {
	ver, err := r.store.Replace(ctx, models.CollectionEvents, ev.EventID, ev, expected)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return 0, err
		}
		return 0, mapEventErr(err, ev.EventID)
	}
	return ver, nil
}

// Delete removes an event document.
func (r *Repository) Delete(ctx context.Context, eventID string) error {
	if err := r.store.Delete(ctx, models.CollectionEvents, eventID); err != nil {
		return mapEventErr(err, eventID)
	}
	return nil
}

func mapEventErr(err error, ref string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Newf(apperr.KindEventNotFound, "event_id", "event %q not found", ref)
	case errors.Is(err, store.ErrTimeout):
		return apperr.Wrap(apperr.KindTimeout, err, "event lookup timed out")
	default:
		return apperr.Wrap(apperr.KindStoreFault, err, "event store failure")
	}
}
