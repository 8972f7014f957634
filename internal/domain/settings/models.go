package settings

import "kpitracker/internal/domain/scoring"

const (
	KeyMode            = "scoring_mode"
	KeyAllowBulkImport = "allow_bulk_import"
	KeyAllowEditDelete = "allow_edit_delete"
	KeyAdminSecretHash = "admin_secret_hash"

	// PermWrite gates every configuration write.
	PermWrite = "settings.write"

	// DefaultAdminSecret is seeded on first start and must be changed by the operator.
	DefaultAdminSecret = "change-me"

	maxLabelLength = 64
	minSecretLen   = 4
)

type Permissions struct {
	AllowBulkImport bool `json:"allowBulkImport"`
	AllowEditDelete bool `json:"allowEditDelete"`
}

// Config is the scoring configuration aggregate in effect.
type Config struct {
	Mode        scoring.Mode             `json:"mode"`
	Labels      [scoring.KPICount]string `json:"labels"`
	Weights     [scoring.KPICount]int    `json:"weights"`
	Thresholds  scoring.Thresholds       `json:"thresholds"`
	Permissions Permissions              `json:"permissions"`
	MaxScore    float64                  `json:"maxScore"`
}

func (c Config) Policy() scoring.Policy {
	return scoring.Policy{Mode: c.Mode, Weights: c.Weights, Thresholds: c.Thresholds}
}

func DefaultLabels() [scoring.KPICount]string {
	return [scoring.KPICount]string{"KPI 1", "KPI 2", "KPI 3", "KPI 4"}
}

func DefaultPermissions() Permissions {
	return Permissions{AllowBulkImport: true, AllowEditDelete: true}
}

func DefaultConfig() Config {
	return Config{
		Mode:        scoring.ModeSum,
		Labels:      DefaultLabels(),
		Weights:     scoring.DefaultWeights(),
		Thresholds:  scoring.DefaultThresholds(scoring.ModeSum),
		Permissions: DefaultPermissions(),
		MaxScore:    scoring.MaxScore(scoring.ModeSum),
	}
}
