package models

import "strings"

// Ticket reserves one of an event's capacity slots for a user. A ticket
// starts unvalidated and flips to validated exactly once, when the owner
// presents the event's staff code; there is no way back.
type Ticket struct {
	TicketID  string `bson:"ticket_id" json:"ticket_id"`
	EventID   string `bson:"event_id" json:"event_id" validate:"required"`
	UserID    string `bson:"user_id" json:"user_id" validate:"required"`
	Email     string `bson:"email" json:"email" validate:"required,email"`
	Validated bool   `bson:"validated" json:"validated"`
}

// TicketKey is the store uniqueness key enforcing one ticket per email per
// event. Emails are case-folded so A@x.com and a@x.com collide.
func TicketKey(eventID, email string) string {
	return "ticket:" + eventID + ":" + strings.ToLower(email)
}
