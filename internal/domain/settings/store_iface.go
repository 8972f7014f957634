package settings

import (
	"context"

	"kpitracker/internal/domain/scoring"
)

type StoreAPI interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Labels(ctx context.Context) (map[int]string, error)
	ReplaceLabels(ctx context.Context, labels [scoring.KPICount]string) error
	Weights(ctx context.Context) (map[int]int, error)
	ReplaceWeights(ctx context.Context, weights [scoring.KPICount]int) error
	Thresholds(ctx context.Context) (map[string]float64, error)
	ReplaceThresholds(ctx context.Context, t scoring.Thresholds) error
	ReplacePermissions(ctx context.Context, p Permissions) error
	SwitchMode(ctx context.Context, mode scoring.Mode, t scoring.Thresholds) error
	SeedDefaults(ctx context.Context, cfg Config, adminSecretHash string) error
}
