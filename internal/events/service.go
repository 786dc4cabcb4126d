package events

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/auth"
	"github.com/evecs/backend/internal/locations"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/schedule"
	"github.com/evecs/backend/internal/schema"
	"github.com/evecs/backend/internal/store"
	"github.com/evecs/backend/internal/vocab"
)

// TicketPurger removes every ticket of an event. Implemented by the tickets
// service; injected to keep the cascade ordering (tickets first, then event)
// in one place.
type TicketPurger interface {
	DeleteByEvent(ctx context.Context, eventID string) (int, error)
}

// CreateRequest is the admission input. Timestamps arrive as ISO 8601 text
// and are normalized to UTC during validation.
type CreateRequest struct {
	UserID      string   `json:"-"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Groups      []string `json:"groups"`
	Tags        []string `json:"tags"`
	LocationID  string   `json:"location_id"`
	RoomID      string   `json:"room_id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	MaxTickets  *uint    `json:"max_tickets"`
	ImageURL    string   `json:"image_url"`
}

// UpdateRequest is a partial patch; nil fields stay untouched.
type UpdateRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Groups      *[]string `json:"groups"`
	Tags        *[]string `json:"tags"`
	LocationID  *string   `json:"location_id"`
	RoomID      *string   `json:"room_id"`
	StartTime   *string   `json:"start_time"`
	EndTime     *string   `json:"end_time"`
	MaxTickets  *uint     `json:"max_tickets"`
	ImageURL    *string   `json:"image_url"`
}

// CalendarRequest selects events inside a date range with optional filters.
type CalendarRequest struct {
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Groups      []string `json:"groups"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	LocationID  string   `json:"location_id"`
}

// Service runs the event admission pipeline.
type Service struct {
	events    *Repository
	locations *locations.Repository
	users     *auth.Repository
	vocab     *vocab.Registry
	oracle    *schema.Oracle
	purger    TicketPurger
	logger    *zap.Logger
	attempts  int
}

// NewService creates the admission service. attempts bounds every
// optimistic-concurrency retry loop; zero means the store default.
func NewService(events *Repository, locs *locations.Repository, users *auth.Repository,
	voc *vocab.Registry, oracle *schema.Oracle, logger *zap.Logger, attempts int) *Service {
	if attempts <= 0 {
		attempts = store.DefaultMaxAttempts
	}
	return &Service{
		events:    events,
		locations: locs,
		users:     users,
		vocab:     voc,
		oracle:    oracle,
		logger:    logger,
		attempts:  attempts,
	}
}

// SetTicketPurger wires the cascade dependency after construction.
func (s *Service) SetTicketPurger(p TicketPurger) { s.purger = p }

// Create admits a new event. Validation is fail-fast in a fixed order and
// produces no side effects on rejection; the booking commit is a single
// compare-and-swap on the location document, so two concurrent admissions
// for the same room cannot both pass the overlap check.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Event, error) {
	if err := requireFields(map[string]string{
		"name":        req.Name,
		"description": req.Description,
		"location_id": req.LocationID,
		"room_id":     req.RoomID,
		"start_time":  req.StartTime,
		"end_time":    req.EndTime,
	}); err != nil {
		return nil, err
	}
	if req.MaxTickets == nil {
		return nil, apperr.New(apperr.KindMissingField, "max_tickets", "missing mandatory field: max_tickets")
	}
	if len(req.Groups) == 0 {
		return nil, apperr.New(apperr.KindMissingField, "groups", "missing mandatory field: groups")
	}

	start, err := schedule.ParseTimestamp("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := schedule.ParseTimestamp("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, apperr.New(apperr.KindInvalidTimeRange, "start_time", "start_time must be strictly before end_time")
	}

	if *req.MaxTickets == 0 {
		return nil, apperr.New(apperr.KindInvalidCapacity, "max_tickets", "max_tickets must be a positive integer")
	}

	loc, _, err := s.locations.Get(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}

	if err := s.requireAuthorized(ctx, req.UserID); err != nil {
		return nil, err
	}

	if !utf8.ValidString(req.Name) || !utf8.ValidString(req.Description) {
		return nil, apperr.New(apperr.KindTypeMismatch, "name", "name and description must be text")
	}

	for _, g := range req.Groups {
		if !s.vocab.ValidGroup(g) {
			return nil, apperr.Newf(apperr.KindInvalidGroup, "groups", "invalid group %q", g)
		}
	}
	for _, t := range req.Tags {
		if !utf8.ValidString(t) || !s.vocab.ValidTag(t) {
			return nil, apperr.Newf(apperr.KindInvalidTag, "tags", "invalid tag %q", t)
		}
	}

	room := loc.Room(req.RoomID)
	if room == nil {
		return nil, apperr.Newf(apperr.KindRoomNotFound, "room_id", "room %q not found in location %q", req.RoomID, req.LocationID)
	}
	if *req.MaxTickets > room.Capacity {
		return nil, apperr.Newf(apperr.KindCapacityExceeded, "max_tickets",
			"max_tickets %d exceeds room capacity %d", *req.MaxTickets, room.Capacity)
	}
	for _, b := range room.Bookings {
		if schedule.Overlaps(start, end, b.StartTime, b.EndTime) {
			return nil, apperr.Newf(apperr.KindRoomConflict, "start_time",
				"room %q is already booked by event %q in that window", req.RoomID, b.EventID)
		}
	}

	code, err := newCode()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFault, err, "failed to generate event code")
	}
	ev := &models.Event{
		EventID:     uuid.New().String(),
		Code:        code,
		CreatorIDs:  []string{req.UserID},
		Name:        req.Name,
		Groups:      req.Groups,
		Tags:        req.Tags,
		Description: req.Description,
		LocationID:  req.LocationID,
		RoomID:      req.RoomID,
		StartTime:   start,
		EndTime:     end,
		MaxTickets:  *req.MaxTickets,
		ImageURL:    req.ImageURL,
	}
	if err := s.oracle.Validate(ev); err != nil {
		return nil, err
	}

	// The commit re-runs room, capacity and overlap checks against the
	// freshest location document inside a CAS loop; the snapshot checks
	// above only give fail-fast ordering.
	if err := s.commitBooking(ctx, ev.LocationID, ev.RoomID, ev.Window(), ev.MaxTickets, ""); err != nil {
		return nil, err
	}
	if err := s.events.Insert(ctx, ev); err != nil {
		s.compensateBooking(ctx, ev.LocationID, ev.EventID)
		return nil, err
	}
	s.logger.Info("event admitted",
		zap.String("event_id", ev.EventID),
		zap.String("room_id", ev.RoomID),
		zap.Time("start", ev.StartTime),
		zap.Time("end", ev.EndTime))
	return ev, nil
}

// Update patches an event after creator and authorization checks, re-running
// the validations the patch touches. Booking moves exclude the event's own
// window from the overlap comparison.
func (s *Service) Update(ctx context.Context, eventID, userID string, patch UpdateRequest) (*models.Event, error) {
	ev, ver, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthorized(ctx, userID); err != nil {
		return nil, err
	}
	if !ev.IsCreator(userID) {
		return nil, apperr.Newf(apperr.KindUnauthorized, "user_id", "user %q is not an admin of event %q", userID, eventID)
	}

	oldLocation, oldRoom, oldWindow := ev.LocationID, ev.RoomID, ev.Window()

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" || !utf8.ValidString(*patch.Name) {
			return nil, apperr.New(apperr.KindTypeMismatch, "name", "name must be non-empty text")
		}
		ev.Name = *patch.Name
	}
	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" || !utf8.ValidString(*patch.Description) {
			return nil, apperr.New(apperr.KindTypeMismatch, "description", "description must be non-empty text")
		}
		ev.Description = *patch.Description
	}
	if patch.Groups != nil {
		if len(*patch.Groups) == 0 {
			return nil, apperr.New(apperr.KindMissingField, "groups", "groups cannot be emptied")
		}
		for _, g := range *patch.Groups {
			if !s.vocab.ValidGroup(g) {
				return nil, apperr.Newf(apperr.KindInvalidGroup, "groups", "invalid group %q", g)
			}
		}
		ev.Groups = *patch.Groups
	}
	if patch.Tags != nil {
		for _, t := range *patch.Tags {
			if !utf8.ValidString(t) || !s.vocab.ValidTag(t) {
				return nil, apperr.Newf(apperr.KindInvalidTag, "tags", "invalid tag %q", t)
			}
		}
		ev.Tags = *patch.Tags
	}
	if patch.StartTime != nil {
		t, err := schedule.ParseTimestamp("start_time", *patch.StartTime)
		if err != nil {
			return nil, err
		}
		ev.StartTime = t
	}
	if patch.EndTime != nil {
		t, err := schedule.ParseTimestamp("end_time", *patch.EndTime)
		if err != nil {
			return nil, err
		}
		ev.EndTime = t
	}
	if !ev.StartTime.Before(ev.EndTime) {
		return nil, apperr.New(apperr.KindInvalidTimeRange, "start_time", "start_time must be strictly before end_time")
	}
	if patch.MaxTickets != nil {
		if *patch.MaxTickets == 0 {
			return nil, apperr.New(apperr.KindInvalidCapacity, "max_tickets", "max_tickets must be a positive integer")
		}
		if *patch.MaxTickets < ev.TicketsIssued {
			return nil, apperr.Newf(apperr.KindCapacityExceeded, "max_tickets",
				"max_tickets %d is below the %d tickets already issued", *patch.MaxTickets, ev.TicketsIssued)
		}
		ev.MaxTickets = *patch.MaxTickets
	}
	if patch.LocationID != nil {
		ev.LocationID = *patch.LocationID
	}
	if patch.RoomID != nil {
		ev.RoomID = *patch.RoomID
	}
	if patch.ImageURL != nil {
		ev.ImageURL = *patch.ImageURL
	}

	bookingChanged := ev.LocationID != oldLocation || ev.RoomID != oldRoom ||
		!ev.StartTime.Equal(oldWindow.StartTime) || !ev.EndTime.Equal(oldWindow.EndTime)

	// Capacity is re-validated against the target room even when only the
	// room changed and max_tickets did not: capacity is room-specific.
	if bookingChanged || patch.MaxTickets != nil {
		loc, _, err := s.locations.Get(ctx, ev.LocationID)
		if err != nil {
			return nil, err
		}
		room := loc.Room(ev.RoomID)
		if room == nil {
			return nil, apperr.Newf(apperr.KindRoomNotFound, "room_id", "room %q not found in location %q", ev.RoomID, ev.LocationID)
		}
		if ev.MaxTickets > room.Capacity {
			return nil, apperr.Newf(apperr.KindCapacityExceeded, "max_tickets",
				"max_tickets %d exceeds room capacity %d", ev.MaxTickets, room.Capacity)
		}
	}

	if err := s.oracle.Validate(ev); err != nil {
		return nil, err
	}

	if bookingChanged {
		if err := s.moveBooking(ctx, oldLocation, ev.LocationID, ev.RoomID, ev.Window(), ev.MaxTickets); err != nil {
			return nil, err
		}
	}

	if _, err := s.events.Replace(ctx, ev, ver); err != nil {
		if bookingChanged {
			// Put the booking back where it was before surfacing the clash.
			if rbErr := s.moveBooking(ctx, ev.LocationID, oldLocation, oldRoom, oldWindow, 0); rbErr != nil {
				s.logger.Error("booking rollback failed",
					zap.String("event_id", ev.EventID), zap.Error(rbErr))
			}
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, err, "event was modified concurrently, retry")
		}
		return nil, err
	}
	s.logger.Info("event updated", zap.String("event_id", ev.EventID))
	return ev, nil
}

// Delete cascades: every ticket of the event is removed first, then the room
// booking, then the event document itself. A failure before the event delete
// leaves the event present so the cascade can be retried.
func (s *Service) Delete(ctx context.Context, eventID, userID string) (int, error) {
	ev, _, err := s.events.Get(ctx, eventID)
	if err != nil {
		return 0, err
	}
	user, _, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !user.Authorized && !ev.IsCreator(userID) {
		return 0, apperr.Newf(apperr.KindUnauthorized, "user_id", "user %q may not delete event %q", userID, eventID)
	}

	deleted := 0
	if s.purger != nil {
		deleted, err = s.purger.DeleteByEvent(ctx, eventID)
		if err != nil {
			return deleted, err
		}
	}
	if err := s.removeBooking(ctx, ev.LocationID, eventID); err != nil {
		return deleted, err
	}
	if err := s.events.Delete(ctx, eventID); err != nil {
		return deleted, err
	}
	s.logger.Info("event deleted",
		zap.String("event_id", eventID),
		zap.Int("tickets_deleted", deleted))
	return deleted, nil
}

// GrantAdminship idempotently adds newAdminID to the event's admin list.
func (s *Service) GrantAdminship(ctx context.Context, eventID, callerID, newAdminID string) error {
	if _, _, err := s.users.GetByID(ctx, newAdminID); err != nil {
		return err
	}
	err := store.WithRetry(ctx, s.attempts, func() error {
		ev, ver, err := s.events.Get(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.IsCreator(callerID) {
			return apperr.Newf(apperr.KindUnauthorized, "user_id", "user %q is not an admin of event %q", callerID, eventID)
		}
		if ev.IsCreator(newAdminID) {
			return nil
		}
		ev.CreatorIDs = append(ev.CreatorIDs, newAdminID)
		_, err = s.events.Replace(ctx, ev, ver)
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		return apperr.Wrap(apperr.KindConflict, err, "event was modified concurrently, retry")
	}
	return err
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, eventID string) (*models.Event, error) {
	ev, _, err := s.events.Get(ctx, eventID)
	return ev, err
}

// RequireCreator verifies userID is an admin of the event. Side-effecting
// handlers call this before doing any work that would outlive a rejection.
func (s *Service) RequireCreator(ctx context.Context, eventID, userID string) error {
	ev, _, err := s.events.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if !ev.IsCreator(userID) {
		return apperr.Newf(apperr.KindUnauthorized, "user_id", "user %q is not an admin of event %q", userID, eventID)
	}
	return nil
}

// Code returns the event's staff code to one of its admins.
func (s *Service) Code(ctx context.Context, eventID, userID string) (string, error) {
	ev, _, err := s.events.Get(ctx, eventID)
	if err != nil {
		return "", err
	}
	if !ev.IsCreator(userID) {
		return "", apperr.Newf(apperr.KindUnauthorized, "user_id", "user %q is not an admin of event %q", userID, eventID)
	}
	return ev.Code, nil
}

// List returns events, optionally narrowed by one group, one tag, and a
// location. Filter values are checked against the vocabularies first.
func (s *Service) List(ctx context.Context, group, tag, locationID string) ([]models.Event, error) {
	if group != "" && !s.vocab.ValidGroup(group) {
		return nil, apperr.Newf(apperr.KindInvalidGroup, "group", "invalid group %q", group)
	}
	if tag != "" && !s.vocab.ValidTag(tag) {
		return nil, apperr.Newf(apperr.KindInvalidTag, "tag", "invalid tag %q", tag)
	}
	f := store.Filter{}
	if locationID != "" {
		f.Eq = map[string]any{"location_id": locationID}
	}
	if group != "" {
		f.Contains = map[string]any{"groups": group}
	}
	if tag != "" {
		if f.Contains == nil {
			f.Contains = map[string]any{}
		}
		f.Contains["tags"] = tag
	}
	return s.events.Find(ctx, f)
}

// Calendar returns events starting inside [start_date, end_date), filtered by
// groups, tags, location and a description substring.
func (s *Service) Calendar(ctx context.Context, req CalendarRequest) ([]models.Event, error) {
	start, err := schedule.ParseTimestamp("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := schedule.ParseTimestamp("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, apperr.New(apperr.KindInvalidTimeRange, "start_date", "start_date must be strictly before end_date")
	}
	for _, g := range req.Groups {
		if !s.vocab.ValidGroup(g) {
			return nil, apperr.Newf(apperr.KindInvalidGroup, "groups", "invalid group %q", g)
		}
	}
	for _, t := range req.Tags {
		if !s.vocab.ValidTag(t) {
			return nil, apperr.Newf(apperr.KindInvalidTag, "tags", "invalid tag %q", t)
		}
	}

	f := store.Filter{Range: map[string]store.Range{"start_time": {Min: start, Max: end}}}
	if req.LocationID != "" {
		f.Eq = map[string]any{"location_id": req.LocationID}
	}
	found, err := s.events.Find(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]models.Event, 0, len(found))
	for _, ev := range found {
		if len(req.Groups) > 0 && !anyOf(ev.Groups, req.Groups) {
			continue
		}
		if len(req.Tags) > 0 && !anyOf(ev.Tags, req.Tags) {
			continue
		}
		if req.Description != "" && !strings.Contains(strings.ToLower(ev.Description), strings.ToLower(req.Description)) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// AttachImage stores an uploaded image URL on the event.
func (s *Service) AttachImage(ctx context.Context, eventID, userID, url string) (*models.Event, error) {
	var out *models.Event
	err := store.WithRetry(ctx, s.attempts, func() error {
		ev, ver, err := s.events.Get(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.IsCreator(userID) {
			return apperr.Newf(apperr.KindUnauthorized, "user_id", "user %q is not an admin of event %q", userID, eventID)
		}
		ev.ImageURL = url
		if err := s.oracle.Validate(ev); err != nil {
			return err
		}
		if _, err := s.events.Replace(ctx, ev, ver); err != nil {
			return err
		}
		out = ev
		return nil
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.Wrap(apperr.KindConflict, err, "event was modified concurrently, retry")
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// requireAuthorized resolves userID and checks the event-management flag.
func (s *Service) requireAuthorized(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.New(apperr.KindMissingField, "user_id", "missing mandatory field: user_id")
	}
	user, _, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Authorized {
		return apperr.Newf(apperr.KindUnauthorized, "user_id", "user %q is not authorized to manage events", userID)
	}
	return nil
}

// commitBooking appends the window to the room's booking list with a single
// versioned replace of the location document. Room existence, capacity and
// overlap are re-checked on every attempt against the freshest document, so
// losing the CAS race can surface RoomConflict rather than silently retrying
// into a now-taken window. excludeEvent drops that event's own bookings from
// the overlap comparison (used by moves).
func (s *Service) commitBooking(ctx context.Context, locationID, roomID string, w models.Booking, maxTickets uint, excludeEvent string) error {
	err := store.WithRetry(ctx, s.attempts, func() error {
		loc, ver, err := s.locations.Get(ctx, locationID)
		if err != nil {
			return err
		}
		room := loc.Room(roomID)
		if room == nil {
			return apperr.Newf(apperr.KindRoomNotFound, "room_id", "room %q not found in location %q", roomID, locationID)
		}
		if maxTickets > room.Capacity {
			return apperr.Newf(apperr.KindCapacityExceeded, "max_tickets",
				"max_tickets %d exceeds room capacity %d", maxTickets, room.Capacity)
		}
		for _, b := range room.Bookings {
			if b.EventID == excludeEvent {
				continue
			}
			if schedule.Overlaps(w.StartTime, w.EndTime, b.StartTime, b.EndTime) {
				return apperr.Newf(apperr.KindRoomConflict, "start_time",
					"room %q is already booked by event %q in that window", roomID, b.EventID)
			}
		}
		room.Bookings = append(room.Bookings, w)
		room.EventRefs = appendUnique(room.EventRefs, w.EventID)
		loc.EventRefs = appendUnique(loc.EventRefs, w.EventID)
		_, err = s.locations.Replace(ctx, loc, ver)
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		return apperr.Wrap(apperr.KindConflict, err, "room bookings changed concurrently, retry")
	}
	return err
}

// removeBooking drops every booking and reference of eventID from the
// location, again under a versioned replace.
func (s *Service) removeBooking(ctx context.Context, locationID, eventID string) error {
	err := store.WithRetry(ctx, s.attempts, func() error {
		loc, ver, err := s.locations.Get(ctx, locationID)
		if err != nil {
			return err
		}
		changed := false
		for i := range loc.Rooms {
			room := &loc.Rooms[i]
			kept := room.Bookings[:0]
			for _, b := range room.Bookings {
				if b.EventID == eventID {
					changed = true
					continue
				}
				kept = append(kept, b)
			}
			room.Bookings = kept
			if removed := removeString(room.EventRefs, eventID); len(removed) != len(room.EventRefs) {
				room.EventRefs = removed
				changed = true
			}
		}
		if removed := removeString(loc.EventRefs, eventID); len(removed) != len(loc.EventRefs) {
			loc.EventRefs = removed
			changed = true
		}
		if !changed {
			return nil
		}
		_, err = s.locations.Replace(ctx, loc, ver)
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		return apperr.Wrap(apperr.KindConflict, err, "room bookings changed concurrently, retry")
	}
	return err
}

// moveBooking relocates an event's booking. Same-location moves commit as a
// single versioned replace; cross-location moves add to the target first and
// compensate the add if the removal from the source fails.
func (s *Service) moveBooking(ctx context.Context, fromLocation, toLocation, toRoom string, w models.Booking, maxTickets uint) error {
	if fromLocation == toLocation {
		err := store.WithRetry(ctx, s.attempts, func() error {
			loc, ver, err := s.locations.Get(ctx, toLocation)
			if err != nil {
				return err
			}
			for i := range loc.Rooms {
				room := &loc.Rooms[i]
				kept := room.Bookings[:0]
				for _, b := range room.Bookings {
					if b.EventID != w.EventID {
						kept = append(kept, b)
					}
				}
				room.Bookings = kept
				room.EventRefs = removeString(room.EventRefs, w.EventID)
			}
			room := loc.Room(toRoom)
			if room == nil {
				return apperr.Newf(apperr.KindRoomNotFound, "room_id", "room %q not found in location %q", toRoom, toLocation)
			}
			if maxTickets > room.Capacity {
				return apperr.Newf(apperr.KindCapacityExceeded, "max_tickets",
					"max_tickets %d exceeds room capacity %d", maxTickets, room.Capacity)
			}
			for _, b := range room.Bookings {
				if schedule.Overlaps(w.StartTime, w.EndTime, b.StartTime, b.EndTime) {
					return apperr.Newf(apperr.KindRoomConflict, "start_time",
						"room %q is already booked by event %q in that window", toRoom, b.EventID)
				}
			}
			room.Bookings = append(room.Bookings, w)
			room.EventRefs = appendUnique(room.EventRefs, w.EventID)
			loc.EventRefs = appendUnique(loc.EventRefs, w.EventID)
			_, err = s.locations.Replace(ctx, loc, ver)
			return err
		})
		if errors.Is(err, store.ErrConflict) {
			return apperr.Wrap(apperr.KindConflict, err, "room bookings changed concurrently, retry")
		}
		return err
	}

	if err := s.commitBooking(ctx, toLocation, toRoom, w, maxTickets, w.EventID); err != nil {
		return err
	}
	if err := s.removeBooking(ctx, fromLocation, w.EventID); err != nil {
		s.compensateBooking(ctx, toLocation, w.EventID)
		return err
	}
	return nil
}

// compensateBooking undoes a committed booking after a later step failed.
// Best effort: a failure here is logged and left for the cascade retry.
func (s *Service) compensateBooking(ctx context.Context, locationID, eventID string) {
	if err := s.removeBooking(ctx, locationID, eventID); err != nil {
		s.logger.Error("booking compensation failed",
			zap.String("location_id", locationID),
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// newCode produces the 6-character staff code.
func newCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

func requireFields(fields map[string]string) error {
	// Fixed iteration order keeps the first-violation-wins contract stable.
	for _, name := range []string{"name", "description", "location_id", "room_id", "start_time", "end_time"} {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			return apperr.New(apperr.KindMissingField, name, "missing mandatory field: "+name)
		}
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func anyOf(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
