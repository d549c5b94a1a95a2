package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEGACY_CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "legacyplanner", cfg.Auth.Issuer)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LEGACY_CONFIG_FILE", "")
	t.Setenv("LEGACY_HTTP_ADDR", ":9999")
	t.Setenv("LEGACY_READ_TIMEOUT", "3s")
	t.Setenv("LEGACY_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LEGACY_RATE_BURST", "not-a-number")
	t.Setenv("LEGACY_AUTO_MIGRATE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.yaml")
	yamlDoc := []byte("server:\n  addr: \":7070\"\nbilling:\n  stripe_key: sk_test_overlay\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, yamlDoc, 0o600))

	t.Setenv("LEGACY_CONFIG_FILE", path)
	t.Setenv("LEGACY_HTTP_ADDR", ":8181")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "sk_test_overlay", cfg.Billing.StripeKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "development", cfg.Server.Env, "fields absent from the overlay keep env values")
}

func TestLoadYAMLOverlayMissingFile(t *testing.T) {
	t.Setenv("LEGACY_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := fromEnv()
	cfg.Auth.Secret = "s3cret"
	require.NoError(t, cfg.Validate())

	cfg.Server.Env = "staging"
	cfg.Auth.Secret = ""
	cfg.Mail.APIURL = "https://mail.example/send"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEGACY_ENV")
	assert.Contains(t, err.Error(), "LEGACY_AUTH_SECRET")
	assert.Contains(t, err.Error(), "LEGACY_MAIL_API_KEY")
}

func TestValidateProductionRequiresBackends(t *testing.T) {
	cfg := fromEnv()
	cfg.Auth.Secret = "s3cret"
	cfg.Server.Env = "production"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEGACY_PG_DSN")
	assert.Contains(t, err.Error(), "LEGACY_STRIPE_KEY")
}
