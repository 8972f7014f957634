package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/platform/db"
)

type Store struct {
	DB *db.Manager
}

func NewStore(m *db.Manager) *Store {
	return &Store{DB: m}
}

type execer interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	upsertSetting   = "INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value"
	upsertLabel     = "INSERT INTO kpi_labels (slot, label) VALUES (?, ?) ON CONFLICT (slot) DO UPDATE SET label = excluded.label"
	upsertWeight    = "INSERT INTO kpi_weights (slot, weight) VALUES (?, ?) ON CONFLICT (slot) DO UPDATE SET weight = excluded.weight"
	upsertThreshold = "INSERT INTO rating_rules (tier, min_score) VALUES (?, ?) ON CONFLICT (tier) DO UPDATE SET min_score = excluded.min_score"

	seedSetting   = "INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING"
	seedLabel     = "INSERT INTO kpi_labels (slot, label) VALUES (?, ?) ON CONFLICT (slot) DO NOTHING"
	seedWeight    = "INSERT INTO kpi_weights (slot, weight) VALUES (?, ?) ON CONFLICT (slot) DO NOTHING"
	seedThreshold = "INSERT INTO rating_rules (tier, min_score) VALUES (?, ?) ON CONFLICT (tier) DO NOTHING"
)

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRow(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.DB.Exec(ctx, upsertSetting, key, value)
	return err
}

func (s *Store) Labels(ctx context.Context) (map[int]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT slot, label FROM kpi_labels ORDER BY slot")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int]string{}
	for rows.Next() {
		var slot int
		var label string
		if err := rows.Scan(&slot, &label); err != nil {
			return nil, err
		}
		out[slot] = label
	}
	return out, rows.Err()
}

func (s *Store) ReplaceLabels(ctx context.Context, labels [scoring.KPICount]string) error {
	return s.DB.WithTx(ctx, func(tx *db.Tx) error {
		for i, label := range labels {
			if _, err := tx.Exec(ctx, upsertLabel, i+1, label); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Weights(ctx context.Context) (map[int]int, error) {
	rows, err := s.DB.Query(ctx, "SELECT slot, weight FROM kpi_weights ORDER BY slot")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int]int{}
	for rows.Next() {
		var slot, weight int
		if err := rows.Scan(&slot, &weight); err != nil {
			return nil, err
		}
		out[slot] = weight
	}
	return out, rows.Err()
}

func (s *Store) ReplaceWeights(ctx context.Context, weights [scoring.KPICount]int) error {
	return s.DB.WithTx(ctx, func(tx *db.Tx) error {
		for i, weight := range weights {
			if _, err := tx.Exec(ctx, upsertWeight, i+1, weight); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Thresholds(ctx context.Context) (map[string]float64, error) {
	rows, err := s.DB.Query(ctx, "SELECT tier, min_score FROM rating_rules")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var tier string
		var minScore float64
		if err := rows.Scan(&tier, &minScore); err != nil {
			return nil, err
		}
		out[tier] = minScore
	}
	return out, rows.Err()
}

func (s *Store) ReplaceThresholds(ctx context.Context, t scoring.Thresholds) error {
	return s.DB.WithTx(ctx, func(tx *db.Tx) error {
		return writeThresholds(ctx, tx, upsertThreshold, t)
	})
}

// SwitchMode stores the new mode together with thresholds expressed in its range.
func (s *Store) ReplacePermissions(ctx context.Context, p Permissions) error {
	return s.DB.WithTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, upsertSetting, KeyAllowBulkImport, strconv.FormatBool(p.AllowBulkImport)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upsertSetting, KeyAllowEditDelete, strconv.FormatBool(p.AllowEditDelete))
		return err
	})
}

func (s *Store) SwitchMode(ctx context.Context, mode scoring.Mode, t scoring.Thresholds) error {
	return s.DB.WithTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, upsertSetting, KeyMode, string(mode)); err != nil {
			return err
		}
		return writeThresholds(ctx, tx, upsertThreshold, t)
	})
}

// SeedDefaults inserts every configuration row that is absent and leaves
// existing rows untouched.
func (s *Store) SeedDefaults(ctx context.Context, cfg Config, adminSecretHash string) error {
	return s.DB.WithTx(ctx, func(tx *db.Tx) error {
		values := [][2]string{
			{KeyMode, string(cfg.Mode)},
			{KeyAllowBulkImport, strconv.FormatBool(cfg.Permissions.AllowBulkImport)},
			{KeyAllowEditDelete, strconv.FormatBool(cfg.Permissions.AllowEditDelete)},
			{KeyAdminSecretHash, adminSecretHash},
		}
		for _, kv := range values {
			if _, err := tx.Exec(ctx, seedSetting, kv[0], kv[1]); err != nil {
				return err
			}
		}
		for i := range cfg.Labels {
			if _, err := tx.Exec(ctx, seedLabel, i+1, cfg.Labels[i]); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, seedWeight, i+1, cfg.Weights[i]); err != nil {
				return err
			}
		}
		return writeThresholds(ctx, tx, seedThreshold, cfg.Thresholds)
	})
}

func writeThresholds(ctx context.Context, tx execer, stmt string, t scoring.Thresholds) error {
	tiers := []struct {
		name  string
		value float64
	}{
		{scoring.RatingExcellent, t.Excellent},
		{scoring.RatingGood, t.Good},
		{scoring.RatingAverage, t.Average},
	}
	for _, tier := range tiers {
		if _, err := tx.Exec(ctx, stmt, tier.name, tier.value); err != nil {
			return err
		}
	}
	return nil
}
