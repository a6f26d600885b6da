package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ORDERBOT_API_BASE_URL", "http://localhost:8000/")
	t.Setenv("ORDERBOT_RESTAURANT_ID", "7")
	t.Setenv("ORDERBOT_PROFILE", filepath.Join(dir, "missing.yaml"))

	cfg := Load(filepath.Join(dir, "none.env"))

	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 7, cfg.RestaurantID)
	assert.Equal(t, BackendFile, cfg.SessionBackend)
	assert.Equal(t, "rb_chat_session_id", cfg.SessionKey)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, time.Duration(0), cfg.HTTPTimeout)
	assert.Equal(t, defaultGreeting, cfg.Profile.Greeting)
	assert.Empty(t, cfg.QuickItems)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProfileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "orderbot.yaml")
	require.NoError(t, os.WriteFile(profile, []byte(`
greeting: "Welcome to Spice Route"
quick_items:
  - Butter Naan
  - Chocolate Waffles
checkout:
  name: Spice Route
`), 0o600))
	t.Setenv("ORDERBOT_PROFILE", profile)
	t.Setenv("ORDERBOT_HTTP_TIMEOUT", "15s")
	t.Setenv("ORDERBOT_RUN_MIGRATIONS", "off")

	cfg := Load(filepath.Join(dir, "none.env"))
	assert.Equal(t, "Welcome to Spice Route", cfg.Profile.Greeting)
	assert.Equal(t, []string{"Butter Naan", "Chocolate Waffles"}, cfg.QuickItems)
	assert.Equal(t, "Spice Route", cfg.Profile.Checkout.Name)
	assert.Equal(t, "Order Payment", cfg.Profile.Checkout.Description)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.RunMigrations)

	t.Setenv("ORDERBOT_QUICK_ITEMS", "Dum Aloo Kasmiri, ,Masala Dosa")
	cfg = Load(filepath.Join(dir, "none.env"))
	assert.Equal(t, []string{"Dum Aloo Kasmiri", "Masala Dosa"}, cfg.QuickItems)
}

func TestValidate(t *testing.T) {
	cfg := Config{SessionBackend: BackendPostgres}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDERBOT_API_BASE_URL")
	assert.Contains(t, err.Error(), "ORDERBOT_RESTAURANT_ID")
	assert.Contains(t, err.Error(), "DB_URL")

	cfg = Config{APIBaseURL: "http://x", RestaurantID: 1, SessionBackend: "etcd"}
	assert.ErrorContains(t, cfg.Validate(), `unknown session backend "etcd"`)
}

func TestLoadProfile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greeting: [unterminated"), 0o600))
	p, err := LoadProfile(path)
	require.Error(t, err)
	assert.Equal(t, defaultGreeting, p.Greeting)
}
