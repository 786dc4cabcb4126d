package models

import "time"

// Event is a scheduled activity bound to one room and one half-open time
// window [StartTime, EndTime), with a ticket capacity.
//
// Code is the 6-character staff code presented when validating tickets in
// person. It persists under a json tag because both store implementations
// encode through struct tags; API responses go through Public, which strips
// it, and creators fetch it through a dedicated endpoint.
type Event struct {
	EventID       string    `bson:"event_id" json:"event_id"`
	Code          string    `bson:"code" json:"code,omitempty" validate:"required,len=6,alphanum"`
	CreatorIDs    []string  `bson:"creator_ids" json:"creator_ids" validate:"min=1"`
	Name          string    `bson:"name" json:"name" validate:"required"`
	Groups        []string  `bson:"groups" json:"groups" validate:"min=1"`
	Tags          []string  `bson:"tags" json:"tags"`
	Description   string    `bson:"description" json:"description" validate:"required"`
	LocationID    string    `bson:"location_id" json:"location_id" validate:"required"`
	RoomID        string    `bson:"room_id" json:"room_id" validate:"required"`
	StartTime     time.Time `bson:"start_time" json:"start_time"`
	EndTime       time.Time `bson:"end_time" json:"end_time"`
	MaxTickets    uint      `bson:"max_tickets" json:"max_tickets" validate:"gt=0"`
	TicketsIssued uint      `bson:"tickets_issued" json:"tickets_issued"`
	ImageURL      string    `bson:"image_url" json:"image_url" validate:"omitempty,url"`
}

// IsCreator reports whether userID is in the event's admin list.
func (e *Event) IsCreator(userID string) bool {
	for _, id := range e.CreatorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Window returns the event's booking window.
func (e *Event) Window() Booking {
	return Booking{EventID: e.EventID, StartTime: e.StartTime, EndTime: e.EndTime}
}

// Public returns a copy safe for API responses, with the staff code stripped.
func (e *Event) Public() *Event {
	c := *e
	c.Code = ""
	return &c
}
