package bundle

import "context"

type Repository interface {
	Create(ctx context.Context, b *Bundle) error
	Get(ctx context.Context, id string) (*Bundle, error)
	List(ctx context.Context) ([]*Bundle, error)
}
