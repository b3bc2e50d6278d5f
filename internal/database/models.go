package database

import (
	"time"

	"photovault/internal/mediatypes"
)

// User is a local account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is one authenticated browser session.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Photo is one imported or uploaded media item. Rows are immutable once
// created, aside from deletion.
type Photo struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"-"`
	Filename  string          `json:"filename"`
	Path      string          `json:"-"`
	Kind      mediatypes.Kind `json:"kind"`
	Size      int64           `json:"size"`
	CreatedAt time.Time       `json:"createdAt"`
}
