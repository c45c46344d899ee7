package workcycle

import "context"

type Repository interface {
	Create(ctx context.Context, c *WorkCycle) error
	Get(ctx context.Context, id string) (*WorkCycle, error)
	List(ctx context.Context) ([]*WorkCycle, error)
}
