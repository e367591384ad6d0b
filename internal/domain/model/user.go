package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered participant. RoleAdmin may finish round sessions by hand.
type User struct {
	ID             string
	Username       string
	Email          string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
