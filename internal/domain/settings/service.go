package settings

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"kpitracker/internal/domain/scoring"
	"kpitracker/internal/platform/apperrors"
)

type Authorizer interface {
	Authorize(ctx context.Context, perm string) error
}

// Service validates every configuration write before it reaches the store.
// Reads always go to the store so a change is visible to the next caller.
type Service struct {
	store StoreAPI
	authz Authorizer
}

func New(store StoreAPI) *Service {
	return &Service{store: store}
}

// UseAuthorizer gates every write behind PermWrite. The authorizer reads
// this service, so it is attached after both exist. Without one, writes
// are ungated.
func (s *Service) UseAuthorizer(authz Authorizer) {
	s.authz = authz
}

func (s *Service) authorize(ctx context.Context) error {
	if s.authz == nil {
		return nil
	}
	return s.authz.Authorize(ctx, PermWrite)
}

// reservedKeys have typed setters that validate and keep related rows in step.
var reservedKeys = map[string]bool{
	KeyMode:            true,
	KeyAllowBulkImport: true,
	KeyAllowEditDelete: true,
	KeyAdminSecretHash: true,
}

func (s *Service) Get(ctx context.Context, key, def string) (string, error) {
	value, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return apperrors.Invalid("key", "is required")
	}
	if reservedKeys[key] {
		return apperrors.Invalid("key", fmt.Sprintf("%q has a dedicated setter", key))
	}
	if err := s.authorize(ctx); err != nil {
		return err
	}
	return s.store.Set(ctx, key, value)
}

// Config assembles the configuration aggregate, filling anything missing
// from the defaults.
func (s *Service) Config(ctx context.Context) (Config, error) {
	cfg := DefaultConfig()

	mode, err := s.Mode(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = mode
	cfg.MaxScore = scoring.MaxScore(mode)

	if cfg.Labels, err = s.Labels(ctx); err != nil {
		return Config{}, err
	}
	if cfg.Weights, err = s.Weights(ctx); err != nil {
		return Config{}, err
	}
	if cfg.Thresholds, err = s.thresholds(ctx, mode); err != nil {
		return Config{}, err
	}
	if cfg.Permissions, err = s.Permissions(ctx); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Policy returns the scoring policy currently in effect.
func (s *Service) Policy(ctx context.Context) (scoring.Policy, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return scoring.Policy{}, err
	}
	return cfg.Policy(), nil
}

func (s *Service) Mode(ctx context.Context) (scoring.Mode, error) {
	raw, err := s.Get(ctx, KeyMode, string(scoring.ModeSum))
	if err != nil {
		return "", err
	}
	mode := scoring.Mode(raw)
	if !mode.Valid() {
		return scoring.ModeSum, nil
	}
	return mode, nil
}

func (s *Service) Labels(ctx context.Context) ([scoring.KPICount]string, error) {
	labels := DefaultLabels()
	stored, err := s.store.Labels(ctx)
	if err != nil {
		return labels, err
	}
	for slot, label := range stored {
		if slot >= 1 && slot <= scoring.KPICount && strings.TrimSpace(label) != "" {
			labels[slot-1] = label
		}
	}
	return labels, nil
}

func (s *Service) Weights(ctx context.Context) ([scoring.KPICount]int, error) {
	stored, err := s.store.Weights(ctx)
	if err != nil {
		return [scoring.KPICount]int{}, err
	}
	if len(stored) == 0 {
		return scoring.DefaultWeights(), nil
	}
	var weights [scoring.KPICount]int
	for slot, weight := range stored {
		if slot >= 1 && slot <= scoring.KPICount {
			weights[slot-1] = weight
		}
	}
	return weights, nil
}

func (s *Service) Thresholds(ctx context.Context) (scoring.Thresholds, error) {
	mode, err := s.Mode(ctx)
	if err != nil {
		return scoring.Thresholds{}, err
	}
	return s.thresholds(ctx, mode)
}

func (s *Service) thresholds(ctx context.Context, mode scoring.Mode) (scoring.Thresholds, error) {
	t := scoring.DefaultThresholds(mode)
	stored, err := s.store.Thresholds(ctx)
	if err != nil {
		return t, err
	}
	if v, ok := stored[scoring.RatingExcellent]; ok {
		t.Excellent = v
	}
	if v, ok := stored[scoring.RatingGood]; ok {
		t.Good = v
	}
	if v, ok := stored[scoring.RatingAverage]; ok {
		t.Average = v
	}
	return t, nil
}

func (s *Service) Permissions(ctx context.Context) (Permissions, error) {
	p := DefaultPermissions()
	var err error
	if p.AllowBulkImport, err = s.boolSetting(ctx, KeyAllowBulkImport, p.AllowBulkImport); err != nil {
		return p, err
	}
	if p.AllowEditDelete, err = s.boolSetting(ctx, KeyAllowEditDelete, p.AllowEditDelete); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Service) boolSetting(ctx context.Context, key string, def bool) (bool, error) {
	raw, err := s.Get(ctx, key, strconv.FormatBool(def))
	if err != nil {
		return def, err
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return def, nil
	}
	return v, nil
}

func (s *Service) AdminSecretHash(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyAdminSecretHash, "")
}

func (s *Service) SetLabels(ctx context.Context, labels [scoring.KPICount]string) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	for i := range labels {
		labels[i] = strings.TrimSpace(labels[i])
		if labels[i] == "" {
			return apperrors.InvalidConfig(fmt.Sprintf("labels[%d]", i), "must not be empty")
		}
		if len(labels[i]) > maxLabelLength {
			return apperrors.InvalidConfig(fmt.Sprintf("labels[%d]", i), fmt.Sprintf("must be at most %d characters", maxLabelLength))
		}
	}
	return s.store.ReplaceLabels(ctx, labels)
}

func (s *Service) SetWeights(ctx context.Context, weights [scoring.KPICount]int) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if err := ValidateWeights(weights); err != nil {
		return err
	}
	return s.store.ReplaceWeights(ctx, weights)
}

func (s *Service) SetThresholds(ctx context.Context, t scoring.Thresholds) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	mode, err := s.Mode(ctx)
	if err != nil {
		return err
	}
	if err := ValidateThresholds(t, mode); err != nil {
		return err
	}
	return s.store.ReplaceThresholds(ctx, t)
}

// SetPermissions writes both flags together or not at all.
func (s *Service) SetPermissions(ctx context.Context, p Permissions) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	return s.store.ReplacePermissions(ctx, p)
}

// SetMode switches between sum and weighted scoring. Thresholds are rescaled
// into the new range in the same write.
func (s *Service) SetMode(ctx context.Context, mode scoring.Mode) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if !mode.Valid() {
		return apperrors.InvalidConfig("mode", fmt.Sprintf("must be %q or %q", scoring.ModeSum, scoring.ModeWeighted))
	}
	current, err := s.Mode(ctx)
	if err != nil {
		return err
	}
	if current == mode {
		return nil
	}
	t, err := s.thresholds(ctx, current)
	if err != nil {
		return err
	}
	t = t.Scale(scoring.MaxScore(mode) / scoring.MaxScore(current))
	if err := ValidateThresholds(t, mode); err != nil {
		return err
	}
	return s.store.SwitchMode(ctx, mode, t)
}

func (s *Service) SetAdminSecret(ctx context.Context, secret string) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if len(strings.TrimSpace(secret)) < minSecretLen {
		return apperrors.Invalid("secret", fmt.Sprintf("must be at least %d characters", minSecretLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, KeyAdminSecretHash, string(hash))
}

// PlaceholderSecretActive reports whether the seeded admin secret is still in use.
func (s *Service) PlaceholderSecretActive(ctx context.Context) (bool, error) {
	hash, err := s.AdminSecretHash(ctx)
	if err != nil {
		return false, err
	}
	if hash == "" {
		return true, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(DefaultAdminSecret)) == nil, nil
}

// SeedDefaults writes the default configuration for every absent row.
func (s *Service) SeedDefaults(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminSecret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.SeedDefaults(ctx, DefaultConfig(), string(hash))
}

func ValidateWeights(weights [scoring.KPICount]int) error {
	total := 0
	for i, w := range weights {
		if w < 0 {
			return apperrors.InvalidConfig(fmt.Sprintf("weights[%d]", i), "must not be negative")
		}
		total += w
	}
	if total != scoring.WeightTotal {
		return apperrors.InvalidConfig("weights", fmt.Sprintf("must sum to %d, got %d", scoring.WeightTotal, total))
	}
	return nil
}

func ValidateThresholds(t scoring.Thresholds, mode scoring.Mode) error {
	maxScore := scoring.MaxScore(mode)
	for name, v := range map[string]float64{"excellent": t.Excellent, "good": t.Good, "average": t.Average} {
		if math.IsNaN(v) || v < 0 || v > maxScore {
			return apperrors.InvalidConfig("thresholds."+name, fmt.Sprintf("must be between 0 and %g", maxScore))
		}
	}
	if t.Excellent < t.Good {
		return apperrors.InvalidConfig("thresholds", "excellent must be greater than or equal to good")
	}
	if t.Good < t.Average {
		return apperrors.InvalidConfig("thresholds", "good must be greater than or equal to average")
	}
	return nil
}
