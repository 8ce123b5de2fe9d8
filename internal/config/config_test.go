package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partner-chat/internal/models"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 8083, cfg.Server.Port)
	assert.Equal(t, "./files", cfg.Files.RootDir)
	assert.Equal(t, 20, cfg.Client.PageSize)
	assert.Equal(t, 3*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, "chat.events", cfg.AMQP.Exchange)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
database:
  url: postgres://example/db
rate_limit:
  rps: 2
  burst: 3
client:
  page_size: 50
  poll_interval: 500ms
`), 0o600))
	t.Setenv("PORT", "9100")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "postgres://example/db", cfg.Database.DSN)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2.0, cfg.RateLimit.RPS)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, 50, cfg.Client.PageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.PollInterval)
}

func TestLoadCapsPageSizeAtServerLimit(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  page_size: 150\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, models.MaxPageLimit, cfg.Client.PageSize)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHAT_USER_ID=42\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CHAT_USER_ID") })

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Client.UserID)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	chdirTemp(t)

	_, err := Load("nope.yaml")

	assert.Error(t, err)
}

func TestLoadRejectsBadInt(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GRPC_PORT", "abc")

	_, err := Load("")

	assert.ErrorContains(t, err, "GRPC_PORT")
}
