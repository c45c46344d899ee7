package meeting

import "context"

type Repository interface {
	Create(ctx context.Context, m *Meeting) error
	Get(ctx context.Context, id string) (*Meeting, error)
	List(ctx context.Context) ([]*Meeting, error)
}
