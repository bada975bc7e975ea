package league

import "context"

type Repository interface {
	// ListEnabled returns enabled leagues ordered by priority, then id.
	ListEnabled(ctx context.Context) ([]League, error)
	GetByID(ctx context.Context, id int64) (*League, error)
	ListByIDs(ctx context.Context, ids []int64) ([]League, error)
}
