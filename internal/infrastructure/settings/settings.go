package settings

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/internal/domain/repository"
	pkgconfig "github.com/wekeepgrowing/order-payments/pkg/config"
	"go.uber.org/zap"
)

// Keys read at runtime
const (
	KeySimulationEnabled = repository.SettingSimulationEnabled
	KeyCashEnabled       = "payments.cash.enabled"
)

var defaults = map[string]interface{}{
	KeyCashEnabled:       false,
	KeySimulationEnabled: false,
}

// Reader serves runtime settings to the payment engine.
type Reader struct {
	cfg pkgconfig.Config
}

// Load opens the runtime settings file. Without a path only defaults and
// environment overrides apply.
func Load(cfg config.SettingsConfig, logger *zap.Logger) (*Reader, error) {
	loaded, err := pkgconfig.Load(pkgconfig.Options{
		Path:      cfg.Path,
		EnvPrefix: cfg.EnvPrefix,
		Defaults:  defaults,
		Watch:     cfg.Watch,
		OnChange: func() {
			logger.Info("Runtime settings reloaded", zap.String("path", cfg.Path))
		},
		OnError: func(err error) {
			logger.Warn("Runtime settings reload failed, keeping previous values",
				zap.String("path", cfg.Path), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load runtime settings: %w", err)
	}
	return NewReader(loaded), nil
}

func NewReader(cfg pkgconfig.Config) *Reader {
	return &Reader{cfg: cfg}
}

func (r *Reader) GetSetting(_ context.Context, key string) (string, bool) {
	if !r.cfg.IsSet(key) {
		return "", false
	}
	return r.cfg.GetString(key), true
}

// All returns every known setting, for the admin endpoint.
func (r *Reader) All() map[string]interface{} {
	return r.cfg.GetAll()
}
