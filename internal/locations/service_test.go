package locations

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/schema"
	"github.com/evecs/backend/internal/store"
)

func newService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(store.NewMemory())
	return NewService(repo, schema.New(), zap.NewNop()), repo
}

func capacity(n uint) *uint { return &n }

func TestCreateLocation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	loc, err := svc.Create(ctx, "Campus", []RoomSpec{
		{Name: "Hall", Capacity: capacity(100)},
		{Name: "Seminar Room", Capacity: capacity(40), Description: "Projector available"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if loc.LocationID == "" {
		t.Fatal("location id not generated")
	}
	if len(loc.Rooms) != 2 {
		t.Fatalf("rooms = %d, want 2", len(loc.Rooms))
	}
	for _, r := range loc.Rooms {
		if r.RoomID == "" {
			t.Errorf("room %q has no id", r.Name)
		}
	}
}

func TestCreateLocationRejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		lname string
		rooms []RoomSpec
		kind  apperr.Kind
	}{
		{"blank name", "  ", []RoomSpec{{Name: "Hall", Capacity: capacity(10)}}, apperr.KindMissingField},
		{"no rooms", "Campus", nil, apperr.KindMissingField},
		{"blank room name", "Campus", []RoomSpec{{Name: "", Capacity: capacity(10)}}, apperr.KindMissingField},
		{"zero capacity", "Campus", []RoomSpec{{Name: "Hall", Capacity: capacity(0)}}, apperr.KindInvalidCapacity},
		{"missing capacity", "Campus", []RoomSpec{{Name: "Hall"}}, apperr.KindMissingField},
		{"duplicate room names", "Campus", []RoomSpec{
			{Name: "Hall", Capacity: capacity(10)},
			{Name: "hall", Capacity: capacity(20)},
		}, apperr.KindConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.lname, tc.rooms)
			if apperr.KindOf(err) != tc.kind {
				t.Fatalf("error kind = %v (%v), want %v", apperr.KindOf(err), err, tc.kind)
			}
		})
	}
}

func TestCreateLocationNameUnique(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rooms := []RoomSpec{{Name: "Hall", Capacity: capacity(10)}}
	if _, err := svc.Create(ctx, "Campus", rooms); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(ctx, "Campus", rooms)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate name: kind = %v, want Conflict", apperr.KindOf(err))
	}
}

func TestEditKeepsBookingsOnExistingRooms(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	loc, err := svc.Create(ctx, "Campus", []RoomSpec{{Name: "Hall", Capacity: capacity(50)}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	roomID := loc.Rooms[0].RoomID

	// Simulate a committed booking.
	stored, ver, err := repo.Get(ctx, loc.LocationID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stored.Rooms[0].Bookings = []models.Booking{{
		EventID:   "ev-1",
		StartTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	stored.Rooms[0].EventRefs = []string{"ev-1"}
	if _, err := repo.Replace(ctx, stored, ver); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	renamed := "Great Hall"
	got, err := svc.Edit(ctx, loc.LocationID, nil, []RoomSpec{
		{RoomID: roomID, Name: renamed},
		{Name: "Annex", Capacity: capacity(20)},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(got.Rooms) != 2 {
		t.Fatalf("rooms = %d, want 2", len(got.Rooms))
	}
	kept := got.Room(roomID)
	if kept == nil || kept.Name != renamed {
		t.Fatalf("existing room lost: %+v", got.Rooms)
	}
	if len(kept.Bookings) != 1 || kept.Bookings[0].EventID != "ev-1" {
		t.Errorf("bookings dropped on edit: %+v", kept.Bookings)
	}
	if kept.Capacity != 50 {
		t.Errorf("capacity changed implicitly: %d", kept.Capacity)
	}
}

func TestEditCannotRemoveBookedRoom(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	loc, err := svc.Create(ctx, "Campus", []RoomSpec{
		{Name: "Hall", Capacity: capacity(50)},
		{Name: "Annex", Capacity: capacity(20)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stored, ver, err := repo.Get(ctx, loc.LocationID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stored.Rooms[0].EventRefs = []string{"ev-1"}
	if _, err := repo.Replace(ctx, stored, ver); err != nil {
		t.Fatalf("seed ref: %v", err)
	}

	// The edit omits the booked room, which must be rejected.
	_, err = svc.Edit(ctx, loc.LocationID, nil, []RoomSpec{
		{RoomID: loc.Rooms[1].RoomID, Name: "Annex"},
	})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict", apperr.KindOf(err))
	}
}

func TestDeleteRejectedWhileReferenced(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	loc, err := svc.Create(ctx, "Campus", []RoomSpec{{Name: "Hall", Capacity: capacity(50)}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stored, ver, err := repo.Get(ctx, loc.LocationID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stored.EventRefs = []string{"ev-1"}
	if _, err := repo.Replace(ctx, stored, ver); err != nil {
		t.Fatalf("seed ref: %v", err)
	}

	err = svc.Delete(ctx, loc.LocationID)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want Conflict", apperr.KindOf(err))
	}

	// Clear the reference and deletion goes through.
	stored, ver, err = repo.Get(ctx, loc.LocationID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stored.EventRefs = nil
	if _, err := repo.Replace(ctx, stored, ver); err != nil {
		t.Fatalf("clear ref: %v", err)
	}
	if err := svc.Delete(ctx, loc.LocationID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = svc.Get(ctx, loc.LocationID)
	if apperr.KindOf(err) != apperr.KindLocationNotFound {
		t.Fatalf("kind = %v, want LocationNotFound", apperr.KindOf(err))
	}
}
