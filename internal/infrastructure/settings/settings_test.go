package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"go.uber.org/zap"
)

func TestLoad_FileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("payments:\n  pix:\n    enabled: false\n"), 0o600))

	r, err := Load(config.SettingsConfig{Path: path, EnvPrefix: "settingstest"}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	v, ok := r.GetSetting(ctx, "payments.pix.enabled")
	assert.True(t, ok)
	assert.Equal(t, "false", v)

	// cash defaults to off
	if v, ok := r.GetSetting(ctx, KeyCashEnabled); ok {
		assert.Equal(t, "false", v)
	}

	_, ok = r.GetSetting(ctx, "payments.stripe.enabled")
	assert.False(t, ok)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SETTINGSTEST_PAYMENTS_CASH_ENABLED", "true")

	r, err := Load(config.SettingsConfig{EnvPrefix: "settingstest"}, zap.NewNop())
	require.NoError(t, err)

	v, ok := r.GetSetting(context.Background(), KeyCashEnabled)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}
