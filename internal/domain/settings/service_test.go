package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/platform/apperrors"
	"kpitracker/internal/platform/requestctx"
	"kpitracker/internal/testhelpers"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := New(NewStore(testhelpers.NewSQLite(t)))
	require.NoError(t, svc.SeedDefaults(context.Background()))
	return svc
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	cfg, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	active, err := svc.PlaceholderSecretActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestSeedDefaultsNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.SetWeights(ctx, [4]int{40, 30, 20, 10}))
	require.NoError(t, svc.SetLabels(ctx, [4]string{"Quality", "Speed", "Attendance", "Teamwork"}))
	require.NoError(t, svc.SetAdminSecret(ctx, "s3cret-value"))
	require.NoError(t, svc.SeedDefaults(ctx))

	weights, err := svc.Weights(ctx)
	require.NoError(t, err)
	assert.Equal(t, [4]int{40, 30, 20, 10}, weights)

	labels, err := svc.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Quality", labels[0])

	active, err := svc.PlaceholderSecretActive(ctx)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSetWeightsRejectsBadTotal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.SetWeights(ctx, [4]int{40, 30, 20, 10}))

	tests := []struct {
		name    string
		weights [4]int
	}{
		{name: "sums to 80", weights: [4]int{20, 20, 20, 20}},
		{name: "sums to 101", weights: [4]int{26, 25, 25, 25}},
		{name: "negative weight", weights: [4]int{-10, 50, 30, 30}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SetWeights(ctx, tc.weights)
			require.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)

			weights, err := svc.Weights(ctx)
			require.NoError(t, err)
			assert.Equal(t, [4]int{40, 30, 20, 10}, weights, "prior weights retained")
		})
	}
}

func TestSetThresholdsRejectsDisorder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.SetMode(ctx, scoring.ModeWeighted))

	err := svc.SetThresholds(ctx, scoring.Thresholds{Excellent: 50, Good: 60, Average: 40})
	require.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)

	err = svc.SetThresholds(ctx, scoring.Thresholds{Excellent: 90, Good: 30, Average: 40})
	require.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)

	err = svc.SetThresholds(ctx, scoring.Thresholds{Excellent: 120, Good: 60, Average: 40})
	require.ErrorIs(t, err, apperrors.ErrInvalidConfiguration, "outside the weighted range")

	got, err := svc.Thresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultThresholds(scoring.ModeWeighted), got)

	require.NoError(t, svc.SetThresholds(ctx, scoring.Thresholds{Excellent: 70, Good: 70, Average: 50}))
	got, err = svc.Thresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, scoring.Thresholds{Excellent: 70, Good: 70, Average: 50}, got)
}

func TestSetModeRescalesThresholds(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.SetThresholds(ctx, scoring.Thresholds{Excellent: 300, Good: 200, Average: 100}))

	require.NoError(t, svc.SetMode(ctx, scoring.ModeWeighted))
	cfg, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, scoring.ModeWeighted, cfg.Mode)
	assert.Equal(t, float64(100), cfg.MaxScore)
	assert.Equal(t, scoring.Thresholds{Excellent: 75, Good: 50, Average: 25}, cfg.Thresholds)

	require.NoError(t, svc.SetMode(ctx, scoring.ModeSum))
	got, err := svc.Thresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, scoring.Thresholds{Excellent: 300, Good: 200, Average: 100}, got)

	assert.ErrorIs(t, svc.SetMode(ctx, scoring.Mode("median")), apperrors.ErrInvalidConfiguration)
}

func TestSetLabelsRejectsBlank(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.SetLabels(ctx, [4]string{"Quality", " ", "Attendance", "Teamwork"})
	require.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)

	labels, err := svc.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultLabels(), labels)
}

func TestPermissionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.SetPermissions(ctx, Permissions{AllowBulkImport: false, AllowEditDelete: true}))
	p, err := svc.Permissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, Permissions{AllowBulkImport: false, AllowEditDelete: true}, p)
}

func TestGenericGetSet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	v, err := svc.Get(ctx, "company_name", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", v)

	require.NoError(t, svc.Set(ctx, "company_name", "Globex"))
	require.NoError(t, svc.Set(ctx, "company_name", "Initech"))
	v, err = svc.Get(ctx, "company_name", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Initech", v)

	assert.ErrorIs(t, svc.Set(ctx, "  ", "x"), apperrors.ErrValidation)
}

func TestGenericSetRejectsReservedKeys(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for _, key := range []string{KeyMode, KeyAllowBulkImport, KeyAllowEditDelete, KeyAdminSecretHash} {
		assert.ErrorIs(t, svc.Set(ctx, key, "x"), apperrors.ErrValidation, key)
	}
	cfg, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSetPermissionsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := testhelpers.NewSQLite(t)
	svc := New(NewStore(m))
	require.NoError(t, svc.SeedDefaults(ctx))

	// Abort any write to the second flag so the first one must be rolled back.
	for _, stmt := range []string{
		`CREATE TRIGGER block_edit_insert BEFORE INSERT ON settings WHEN NEW.key = 'allow_edit_delete'
		 BEGIN SELECT RAISE(ABORT, 'write failed'); END`,
		`CREATE TRIGGER block_edit_update BEFORE UPDATE ON settings WHEN NEW.key = 'allow_edit_delete'
		 BEGIN SELECT RAISE(ABORT, 'write failed'); END`,
	} {
		_, err := m.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	err := svc.SetPermissions(ctx, Permissions{AllowBulkImport: false, AllowEditDelete: false})
	require.Error(t, err)

	p, err := svc.Permissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultPermissions(), p, "no flag changed")
}

type sessionAuthorizer struct {
	asked []string
}

func (a *sessionAuthorizer) Authorize(ctx context.Context, perm string) error {
	a.asked = append(a.asked, perm)
	if _, ok := requestctx.GetAdmin(ctx); !ok {
		return apperrors.Unauthorized("admin session required")
	}
	return nil
}

func TestWritesRequireAuthorization(t *testing.T) {
	svc := newTestService(t)
	authz := &sessionAuthorizer{}
	svc.UseAuthorizer(authz)
	anon := context.Background()

	writes := map[string]func(context.Context) error{
		"labels": func(ctx context.Context) error {
			return svc.SetLabels(ctx, [4]string{"Quality", "Speed", "Attendance", "Teamwork"})
		},
		"weights":     func(ctx context.Context) error { return svc.SetWeights(ctx, [4]int{40, 30, 20, 10}) },
		"thresholds":  func(ctx context.Context) error { return svc.SetThresholds(ctx, scoring.Thresholds{Excellent: 300, Good: 200, Average: 100}) },
		"permissions": func(ctx context.Context) error { return svc.SetPermissions(ctx, Permissions{}) },
		"mode":        func(ctx context.Context) error { return svc.SetMode(ctx, scoring.ModeWeighted) },
		"secret":      func(ctx context.Context) error { return svc.SetAdminSecret(ctx, "a-new-secret") },
		"generic":     func(ctx context.Context) error { return svc.Set(ctx, "company_name", "Globex") },
	}
	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, write(anon), apperrors.ErrUnauthorized)
		})
	}

	cfg, err := svc.Config(anon)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg, "denied writes left the configuration alone")
	assert.Contains(t, authz.asked, PermWrite)

	admin := requestctx.WithAdmin(anon, requestctx.AdminSession{ID: "s1", Subject: "admin"})
	require.NoError(t, svc.SetWeights(admin, [4]int{40, 30, 20, 10}))
}

func TestSetAdminSecretRejectsShortSecret(t *testing.T) {
	svc := newTestService(t)
	assert.ErrorIs(t, svc.SetAdminSecret(context.Background(), "abc"), apperrors.ErrValidation)
}
