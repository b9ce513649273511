package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	body := "DSN=postgres://localhost/racers\nJWT_SECRET=s3cret\nMIDTRANS_SERVER_KEY=SB-key\nSUPERFAN_THRESHOLD_CENTS=7500\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.env"), []byte(body), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/racers", cfg.DSN)
	assert.Equal(t, int64(7500), cfg.SuperfanThresholdCents)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 5*time.Second, cfg.ViewMinDwell)
	assert.True(t, cfg.MonetizationEnabled())
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("DSN", "postgres://env/racers")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/racers", cfg.DSN)
	assert.False(t, cfg.MonetizationEnabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("DSN", "")
	t.Setenv("JWT_SECRET", "x")
	_, err := Load(t.TempDir())
	require.Error(t, err)
}
