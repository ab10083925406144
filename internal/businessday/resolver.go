package businessday

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

// SettingsStore loads the raw settings a tenant has configured.
type SettingsStore interface {
	TenantSettings(ctx context.Context, businessID uint64) (*model.TenantSettings, error)
}

// ConfigResolver resolves the BusinessDayConfig of a tenant, filling in
// the default reset time and the fallback timezone for unset fields.
type ConfigResolver struct {
	store           SettingsStore
	defaultTimezone string
}

// NewConfigResolver returns a resolver backed by store.  fallbackTZ is used
// for tenants without a configured zone; empty means UTC.
func NewConfigResolver(store SettingsStore, fallbackTZ string) *ConfigResolver {
	if fallbackTZ == "" {
		fallbackTZ = "UTC"
	}
	return &ConfigResolver{store: store, defaultTimezone: fallbackTZ}
}

// Resolve returns the effective config for businessID.  A tenant with no
// stored settings gets every default.
func (r *ConfigResolver) Resolve(ctx context.Context, businessID uint64) (model.BusinessDayConfig, error) {
	if businessID == 0 {
		return model.BusinessDayConfig{}, repository.ErrMissingTenant
	}
	cfg := model.BusinessDayConfig{
		ResetHour:   DefaultResetHour,
		ResetMinute: DefaultResetMinute,
		Timezone:    r.defaultTimezone,
	}
	s, err := r.store.TenantSettings(ctx, businessID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.BusinessDayConfig{}, fmt.Errorf("load tenant settings: %w", err)
	}
	if s != nil {
		if s.Timezone != "" {
			cfg.Timezone = s.Timezone
		}
		if s.ResetHour != nil {
			cfg.ResetHour = *s.ResetHour
		}
		if s.ResetMinute != nil {
			cfg.ResetMinute = *s.ResetMinute
		}
	}
	if _, err := Location(cfg); err != nil {
		return model.BusinessDayConfig{}, err
	}
	return cfg, nil
}
