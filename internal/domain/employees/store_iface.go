package employees

import "context"

type StoreAPI interface {
	Insert(ctx context.Context, e Employee) (Employee, error)
	Deactivate(ctx context.Context, name string) (bool, error)
	ListActive(ctx context.Context) ([]Employee, error)
	Lookup(ctx context.Context, name string) (Employee, error)
	Count(ctx context.Context) (int, error)
}
