package models

import "time"

// Collection names in the document store.
const (
	CollectionLocations  = "locations"
	CollectionEvents     = "events"
	CollectionUsers      = "users"
	CollectionUserEmails = "user_emails"
	CollectionTickets    = "tickets"
)

// Booking is a committed room reservation window, denormalized into the room
// document so that admissions for a location serialize on a single write.
// Intervals are half-open: [StartTime, EndTime).
type Booking struct {
	EventID   string    `bson:"event_id" json:"event_id"`
	StartTime time.Time `bson:"start_time" json:"start_time"`
	EndTime   time.Time `bson:"end_time" json:"end_time"`
}

// Room is a bookable space inside a location.
type Room struct {
	RoomID      string    `bson:"room_id" json:"room_id"`
	Name        string    `bson:"name" json:"name" validate:"required"`
	Capacity    uint      `bson:"capacity" json:"capacity" validate:"gt=0"`
	Description string    `bson:"description" json:"description"`
	Bookings    []Booking `bson:"bookings" json:"bookings"`
	EventRefs   []string  `bson:"event_refs" json:"event_refs"`
}

// Location is a named site owning a set of rooms.
type Location struct {
	LocationID string   `bson:"location_id" json:"location_id"`
	Name       string   `bson:"name" json:"name" validate:"required"`
	Rooms      []Room   `bson:"rooms" json:"rooms" validate:"min=1,dive"`
	EventRefs  []string `bson:"event_refs" json:"event_refs"`
}

// Room returns a pointer to the room with the given id, or nil.
func (l *Location) Room(roomID string) *Room {
	for i := range l.Rooms {
		if l.Rooms[i].RoomID == roomID {
			return &l.Rooms[i]
		}
	}
	return nil
}

// Referenced reports whether any event still references the location or one
// of its rooms.
func (l *Location) Referenced() bool {
	if len(l.EventRefs) > 0 {
		return true
	}
	for i := range l.Rooms {
		if len(l.Rooms[i].EventRefs) > 0 || len(l.Rooms[i].Bookings) > 0 {
			return true
		}
	}
	return false
}
