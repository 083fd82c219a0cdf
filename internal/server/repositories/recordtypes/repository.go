package recordtypes

import "context"

// Repository tracks which record types the schema knows about.
type Repository interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name string) error
}
