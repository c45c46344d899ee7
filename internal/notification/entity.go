package notification

import "time"

type Notification struct {
	ID        string    `yaml:"id" json:"id"`
	UserID    string    `yaml:"user_id" json:"user_id"`
	TaskID    string    `yaml:"task_id,omitempty" json:"task_id,omitempty"`
	Message   string    `yaml:"message" json:"message"`
	IsRead    bool      `yaml:"is_read" json:"is_read"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}
