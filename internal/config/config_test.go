package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"storage": {"bucket": "signed", "public_base_url": "https://files.local"},
		"signing": {"evidence_secret": "from-file", "sign_zones": [{"id": "sig_stagiaire", "page": 2, "x": 0.1, "y": 0.8, "w": 0.3, "h": 0.1}]}
	}`), 0o600))

	t.Setenv("SIGNATURE_EVIDENCE_SECRET", "from-env")
	t.Setenv("REMINDER_AFTER", "24h")
	t.Setenv("DATABASE_AUTO_MIGRATE", "false")
	t.Setenv("AUTH_JWT_SECRET", "staff-secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "signed", cfg.Storage.Bucket)
	assert.Equal(t, "https://files.local", cfg.Storage.PublicBaseURL)
	assert.Equal(t, "from-env", cfg.Signing.EvidenceSecret)
	assert.Equal(t, 24*time.Hour, cfg.Workers.ReminderAfter)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "staff-secret", cfg.Auth.JWTSecret)
	require.Len(t, cfg.Signing.SignZones, 1)
	assert.Equal(t, "sig_stagiaire", cfg.Signing.SignZones[0].ID)
	assert.Equal(t, 2, cfg.Signing.SignZones[0].Page)
}

func TestLoadConfig_RequiresEvidenceSecret(t *testing.T) {
	t.Setenv("SIGNATURE_EVIDENCE_SECRET", "")
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrMissingEvidenceSecret)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", db.GetDatabaseURL())
}

func TestNewLogger(t *testing.T) {
	l := LoggingConfig{Level: "debug"}
	logger, err := l.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}
