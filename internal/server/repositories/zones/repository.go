package zones

import "context"

type Repository interface {
	Ensure(ctx context.Context, ownerID, name string) error
	Exists(ctx context.Context, ownerID, name string) (bool, error)
}
