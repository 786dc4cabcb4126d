package models

import "strings"

// EmailKey is the store uniqueness key enforcing one account per email.
// Emails are case-folded so A@x.com and a@x.com collide.
func EmailKey(email string) string {
	return "email:" + strings.ToLower(email)
}

// User is a platform account. Authorized users may create and manage events.
//
// PasswordHash carries a json tag because both store implementations encode
// through struct tags; API responses go through Public instead.
type User struct {
	UserID       string   `bson:"user_id" json:"user_id"`
	Email        string   `bson:"email" json:"email" validate:"required,email"`
	PasswordHash string   `bson:"password_hash" json:"password_hash,omitempty" validate:"required"`
	Authorized   bool     `bson:"authorized" json:"authorized"`
	Groups       []string `bson:"groups" json:"groups"`
}

// Public returns a copy safe for API responses, with the password hash
// stripped.
func (u *User) Public() *User {
	c := *u
	c.PasswordHash = ""
	return &c
}
