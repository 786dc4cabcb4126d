package locations

import (
	"context"
	"errors"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/store"
)

// Repository handles location persistence. Locations are keyed by
// location_id; their store version serializes every room booking inside
// them (see the events admission pipeline).
type Repository struct {
	store store.Store
}

// NewRepository creates a locations repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// Get returns a location and its document version.
func (r *Repository) Get(ctx context.Context, locationID string) (*models.Location, store.Version, error) {
	var loc models.Location
	ver, err := r.store.FindOne(ctx, models.CollectionLocations, store.Eq("location_id", locationID), &loc)
	if err != nil {
		return nil, 0, mapLocationErr(err, locationID)
	}
	return &loc, ver, nil
}

// GetByName returns a location by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (*models.Location, store.Version, error) {
	var loc models.Location
	ver, err := r.store.FindOne(ctx, models.CollectionLocations, store.Eq("name", name), &loc)
	if err != nil {
		return nil, 0, mapLocationErr(err, name)
	}
	return &loc, ver, nil
}

// List returns all locations.
func (r *Repository) List(ctx context.Context) ([]models.Location, error) {
	var out []models.Location
	if err := r.store.Find(ctx, models.CollectionLocations, store.Filter{}, &out); err != nil {
		return nil, mapLocationErr(err, "")
	}
	return out, nil
}

// Insert stores a new location document.
func (r *Repository) Insert(ctx context.Context, loc *models.Location) error {
	if err := r.store.Insert(ctx, models.CollectionLocations, loc.LocationID, loc); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return apperr.Newf(apperr.KindConflict, "location_id", "location %q already exists", loc.LocationID)
		}
		return mapLocationErr(err, loc.LocationID)
	}
	return nil
}

// Replace swaps the location document if the caller still holds the current
// version. ErrConflict propagates raw so admission loops can retry.
func (r *Repository) Replace(ctx context.Context, loc *models.Location, expected store.Version) (store.Version, error) {
	ver, err := r.store.Replace(ctx, models.CollectionLocations, loc.LocationID, loc, expected)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return 0, err
		}
		return 0, mapLocationErr(err, loc.LocationID)
	}
	return ver, nil
}

// Delete removes a location document.
func (r *Repository) Delete(ctx context.Context, locationID string) error {
	if err := r.store.Delete(ctx, models.CollectionLocations, locationID); err != nil {
		return mapLocationErr(err, locationID)
	}
	return nil
}

func mapLocationErr(err error, ref string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Newf(apperr.KindLocationNotFound, "location_id", "location %q not found", ref)
	case errors.Is(err, store.ErrTimeout):
		return apperr.Wrap(apperr.KindTimeout, err, "location lookup timed out")
	default:
		return apperr.Wrap(apperr.KindStoreFault, err, "location store failure")
	}
}
