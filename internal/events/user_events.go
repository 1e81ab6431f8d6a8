package events

import "time"

const ActionUserRegistered = "user.registered"

type UserRegistered struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}
