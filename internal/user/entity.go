package user

import (
	"time"

	"github.com/taskdeck/taskdeck/internal/auth"
)

type User struct {
	ID        string    `yaml:"id" json:"id"`
	Username  string    `yaml:"username" json:"username"`
	Role      auth.Role `yaml:"role" json:"role"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}
