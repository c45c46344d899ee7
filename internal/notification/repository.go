package notification

import "context"

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id string) (*Notification, error)
	ListByUser(ctx context.Context, userID string) ([]*Notification, error)
	Update(ctx context.Context, n *Notification) error
}
