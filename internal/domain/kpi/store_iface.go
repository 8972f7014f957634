package kpi

import (
	"context"

	"kpitracker/internal/domain/scoring"
)

type StoreAPI interface {
	Insert(ctx context.Context, e Entry) (Entry, error)
	InsertBatch(ctx context.Context, entries []Entry) (int, error)
	Update(ctx context.Context, id int64, kpis [scoring.KPICount]int, result scoring.Result) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, f Filter) ([]Entry, error)
	DistinctDepartments(ctx context.Context) ([]string, error)
	DistinctEmployees(ctx context.Context, department string) ([]string, error)
}
