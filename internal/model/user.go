// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"time"
)

// User represents a registered account in the credential store.
//
// WHY ID int64?
// The account ID is assigned by SQLite (INTEGER PRIMARY KEY AUTOINCREMENT)
// and is the stable identity embedded in session tokens. Usernames are
// unique too, but tokens carry the numeric ID so a username typo fix or a
// future rename never orphans outstanding sessions.
//
// PINHash is the bcrypt hash of the user's PIN. It is never serialized to
// JSON (`json:"-"`) — the cleartext PIN exists only transiently inside the
// signup/login call stack and the hash never leaves the server.
type User struct {
	ID          int64      `json:"id"          db:"id"`
	Username    string     `json:"username"    db:"username"`
	PINHash     string     `json:"-"           db:"pin_hash"`
	Document    Document   `json:"document"    db:"user_data"`
	CreatedAt   time.Time  `json:"createdAt"   db:"created_at"`
	LastLoginAt *time.Time `json:"lastLoginAt" db:"last_login_at"` // nil until first login
	LastLoginIP string     `json:"lastLoginIp" db:"last_login_ip"`
	Active      bool       `json:"active"      db:"is_active"`
}

// Document is the per-user JSON document: a profile sub-object owned by the
// credential service itself, plus one opaque slice per subordinate service.
//
// WHY map[string]json.RawMessage?
// Each service's slice is arbitrary JSON we must store and return verbatim.
// RawMessage keeps the stored bytes untouched (no float re-encoding, no key
// reordering surprises from an intermediate map[string]any), so a write
// followed by a read round-trips byte-identically. It also makes data
// isolation structural: reading one key can never observe another key's value.
type Document struct {
	Profile  Profile                    `json:"profile"`
	Services map[string]json.RawMessage `json:"services"`
}

// Profile is the display-facing part of a user's document, seeded at signup.
type Profile struct {
	DisplayName string    `json:"displayName"`
	Avatar      *string   `json:"avatar"` // null until the user sets one
	Level       int       `json:"level"`
	JoinDate    time.Time `json:"joinDate"`
}

// NewDocument returns the document every fresh account starts with:
// a default profile and an empty services map.
func NewDocument(username string, now time.Time) Document {
	return Document{
		Profile: Profile{
			DisplayName: username,
			Avatar:      nil,
			Level:       1,
			JoinDate:    now,
		},
		Services: map[string]json.RawMessage{},
	}
}

// UserData is the payload shape of GET /api/me: identity plus the full
// document, flattened the way subordinate services expect it.
type UserData struct {
	UserID   int64                      `json:"userId"`
	Username string                     `json:"username"`
	Profile  Profile                    `json:"profile"`
	Services map[string]json.RawMessage `json:"services"`
}
