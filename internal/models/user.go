package models

import "time"

type RegisterStatus int

const (
	UserRegistered RegisterStatus = iota
	UserAlreadyExists
)

func (s RegisterStatus) String() string {
	switch s {
	case UserRegistered:
		return "registered"
	case UserAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

type User struct {
	ID       string `json:"id"       bson:"_id"`
	Verified bool   `json:"verified" bson:"verified"`
	// Lab and Cwi are per-user counters kept on the registration record, voting never reads them
	Lab       int       `json:"lab"        bson:"lab"`
	Cwi       int       `json:"cwi"        bson:"cwi"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NewUser builds an unverified registration record.
func NewUser(id string, now time.Time) *User {
	return &User{
		ID:        id,
		Verified:  false,
		Lab:       1,
		Cwi:       1,
		CreatedAt: now,
	}
}
