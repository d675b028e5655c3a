package response

import (
	"time"

	"github.com/mcoot/ari-accounts/internal/model"
)

// Health is the response for the health endpoint
type Health struct {
	Status string `json:"status"`
}

// Roles maps role names to privilege levels
type Roles struct {
	Roles map[string]int `json:"roles"`
}

// User is the public view of an account. Hashes never leave the store.
type User struct {
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		Username:  u.Username,
		Bio:       u.Bio,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt,
	}
}
