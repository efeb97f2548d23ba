package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/imageflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigStore persists provider configurations.
type ConfigStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewConfigStore creates a configuration store on an open GORM handle.
func NewConfigStore(db *gorm.DB, logger *zap.Logger) *ConfigStore {
	return &ConfigStore{db: db, logger: logger}
}

// ConfigUpdate is a partial update: nil fields are left untouched.
type ConfigUpdate struct {
	Name     *string           `json:"name,omitempty"`
	URL      *string           `json:"url,omitempty"`
	APIKey   *string           `json:"api_key,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Model    *string           `json:"model,omitempty"`
	IsActive *bool             `json:"is_active,omitempty"`
}

// Create inserts a new configuration, assigning an id when absent.
func (s *ConfigStore) Create(ctx context.Context, cfg *ProviderConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Name == "" || cfg.URL == "" {
		return types.NewError(types.ErrValidation, "config name and url are required")
	}
	if err := s.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return types.NewError(types.ErrInternalError, "create config").WithCause(err)
	}
	s.logger.Info("provider config created",
		zap.String("id", cfg.ID), zap.String("name", cfg.Name))
	return nil
}

// Get returns one configuration by id.
func (s *ConfigStore) Get(ctx context.Context, id string) (*ProviderConfig, error) {
	var cfg ProviderConfig
	err := s.db.WithContext(ctx).First(&cfg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, fmt.Sprintf("config %s not found", id))
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "load config").WithCause(err)
	}
	return &cfg, nil
}

// List returns every configuration, newest first.
func (s *ConfigStore) List(ctx context.Context) ([]ProviderConfig, error) {
	var configs []ProviderConfig
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&configs).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "list configs").WithCause(err)
	}
	return configs, nil
}

// Count returns the number of stored configurations.
func (s *ConfigStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ProviderConfig{}).Count(&n).Error; err != nil {
		return 0, types.NewError(types.ErrInternalError, "count configs").WithCause(err)
	}
	return n, nil
}

// Update applies a partial update. Fields left nil keep their stored value.
func (s *ConfigStore) Update(ctx context.Context, id string, upd ConfigUpdate) (*ProviderConfig, error) {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		cfg.Name = *upd.Name
	}
	if upd.URL != nil {
		cfg.URL = *upd.URL
	}
	if upd.APIKey != nil {
		cfg.APIKey = *upd.APIKey
	}
	if upd.Headers != nil {
		cfg.SetHeaderMap(upd.Headers)
	}
	if upd.Model != nil {
		cfg.Model = *upd.Model
	}
	if upd.IsActive != nil {
		cfg.IsActive = *upd.IsActive
	}

	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "update config").WithCause(err)
	}
	return cfg, nil
}

// Delete removes one configuration. Deleting an absent id is NotFound.
func (s *ConfigStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&ProviderConfig{}, "id = ?", id)
	if res.Error != nil {
		return types.NewError(types.ErrInternalError, "delete config").WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.ErrNotFound, fmt.Sprintf("config %s not found", id))
	}
	return nil
}

// Active returns the active configuration. Several rows may be active at
// once; the most recently updated one wins.
func (s *ConfigStore) Active(ctx context.Context) (*ProviderConfig, error) {
	var cfg ProviderConfig
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("updated_at DESC").
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "no active config")
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "load active config").WithCause(err)
	}
	return &cfg, nil
}
