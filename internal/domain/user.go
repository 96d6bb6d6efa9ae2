package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl"`
	IsVerified   bool      `json:"isVerified"`

	VerificationToken sql.NullString `json:"-"`
	ResetToken        sql.NullString `json:"-"`
	ResetTokenExpires sql.NullTime   `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile is the subset of User safe to hand to other users.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}
