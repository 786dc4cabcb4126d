package locations

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/schema"
	"github.com/evecs/backend/internal/store"
)

// RoomSpec describes one room in a create or edit request.
type RoomSpec struct {
	RoomID      string `json:"room_id"`
	Name        string `json:"name"`
	Capacity    *uint  `json:"capacity"`
	Description string `json:"description"`
}

// Service implements location CRUD on top of the repository.
type Service struct {
	repo   *Repository
	oracle *schema.Oracle
	logger *zap.Logger
}

// NewService creates a locations service.
func NewService(repo *Repository, oracle *schema.Oracle, logger *zap.Logger) *Service {
	return &Service{repo: repo, oracle: oracle, logger: logger}
}

// Create builds and stores a new location with the given rooms. Room ids are
// generated server side; room names must be unique within the location.
func (s *Service) Create(ctx context.Context, name string, rooms []RoomSpec) (*models.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.KindMissingField, "name", "location name is required")
	}
	built, err := buildRooms(rooms, nil)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, apperr.Newf(apperr.KindConflict, "name", "location %q already exists", name)
	} else if apperr.KindOf(err) != apperr.KindLocationNotFound {
		return nil, err
	}

	loc := &models.Location{
		LocationID: uuid.New().String(),
		Name:       name,
		Rooms:      built,
	}
	if err := s.oracle.Validate(loc); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, loc); err != nil {
		return nil, err
	}
	s.logger.Info("location created",
		zap.String("location_id", loc.LocationID),
		zap.String("name", loc.Name),
		zap.Int("rooms", len(loc.Rooms)))
	return loc, nil
}

// Get returns a single location.
func (s *Service) Get(ctx context.Context, locationID string) (*models.Location, error) {
	loc, _, err := s.repo.Get(ctx, locationID)
	return loc, err
}

// List returns all locations.
func (s *Service) List(ctx context.Context) ([]models.Location, error) {
	return s.repo.List(ctx)
}

// Edit patches a location. A nil rooms slice leaves rooms untouched; when
// rooms are supplied, existing rooms are matched by room_id and keep their
// bookings, new specs without a room_id become new rooms, and omitted rooms
// are removed only if they hold no bookings.
func (s *Service) Edit(ctx context.Context, locationID string, name *string, rooms []RoomSpec) (*models.Location, error) {
	const attempts = store.DefaultMaxAttempts
	var out *models.Location
	err := store.WithRetry(ctx, attempts, func() error {
		loc, ver, err := s.repo.Get(ctx, locationID)
		if err != nil {
			return err
		}
		if name != nil {
			trimmed := strings.TrimSpace(*name)
			if trimmed == "" {
				return apperr.New(apperr.KindMissingField, "name", "location name is required")
			}
			if trimmed != loc.Name {
				if other, _, err := s.repo.GetByName(ctx, trimmed); err == nil && other.LocationID != loc.LocationID {
					return apperr.Newf(apperr.KindConflict, "name", "location %q already exists", trimmed)
				}
				loc.Name = trimmed
			}
		}
		if rooms != nil {
			built, err := buildRooms(rooms, loc)
			if err != nil {
				return err
			}
			loc.Rooms = built
		}
		if err := s.oracle.Validate(loc); err != nil {
			return err
		}
		if _, err := s.repo.Replace(ctx, loc, ver); err != nil {
			return err
		}
		out = loc
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, err, "location was modified concurrently, retry")
		}
		return nil, err
	}
	return out, nil
}

// Delete removes a location. Locations still referenced by events cannot be
// deleted; callers must delete or move the events first.
func (s *Service) Delete(ctx context.Context, locationID string) error {
	loc, _, err := s.repo.Get(ctx, locationID)
	if err != nil {
		return err
	}
	if loc.Referenced() {
		return apperr.Newf(apperr.KindConflict, "location_id",
			"location %q still hosts events and cannot be deleted", locationID)
	}
	if err := s.repo.Delete(ctx, locationID); err != nil {
		return err
	}
	s.logger.Info("location deleted", zap.String("location_id", locationID))
	return nil
}

// buildRooms turns specs into room documents. When existing is non-nil the
// specs patch that location's rooms in place.
func buildRooms(specs []RoomSpec, existing *models.Location) ([]models.Room, error) {
	if len(specs) == 0 {
		return nil, apperr.New(apperr.KindMissingField, "rooms", "at least one room is required")
	}
	seen := make(map[string]bool, len(specs))
	kept := make(map[string]bool, len(specs))
	out := make([]models.Room, 0, len(specs))
	for _, spec := range specs {
		roomName := strings.TrimSpace(spec.Name)
		if roomName == "" {
			return nil, apperr.New(apperr.KindMissingField, "rooms.name", "room name is required")
		}
		lower := strings.ToLower(roomName)
		if seen[lower] {
			return nil, apperr.Newf(apperr.KindConflict, "rooms.name", "duplicate room name %q", roomName)
		}
		seen[lower] = true

		room := models.Room{
			RoomID:      spec.RoomID,
			Name:        roomName,
			Description: spec.Description,
		}
		if spec.RoomID != "" {
			if existing == nil {
				return nil, apperr.New(apperr.KindTypeMismatch, "rooms.room_id", "room_id cannot be set on create")
			}
			prev := existing.Room(spec.RoomID)
			if prev == nil {
				return nil, apperr.Newf(apperr.KindRoomNotFound, "rooms.room_id", "room %q not found", spec.RoomID)
			}
			room.Bookings = prev.Bookings
			room.EventRefs = prev.EventRefs
			room.Capacity = prev.Capacity
			kept[spec.RoomID] = true
		} else {
			room.RoomID = uuid.New().String()
		}
		if spec.Capacity != nil {
			if *spec.Capacity == 0 {
				return nil, apperr.New(apperr.KindInvalidCapacity, "rooms.capacity", "room capacity must be a positive integer")
			}
			room.Capacity = *spec.Capacity
		}
		if room.Capacity == 0 {
			return nil, apperr.New(apperr.KindMissingField, "rooms.capacity", "room capacity is required")
		}
		out = append(out, room)
	}
	if existing != nil {
		for _, prev := range existing.Rooms {
			if kept[prev.RoomID] {
				continue
			}
			if len(prev.Bookings) > 0 || len(prev.EventRefs) > 0 {
				return nil, apperr.Newf(apperr.KindConflict, "rooms",
					"room %q still hosts events and cannot be removed", prev.RoomID)
			}
		}
	}
	return out, nil
}
