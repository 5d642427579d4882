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
	var cfg Config
	require.NoError(t, Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendDynamo, cfg.StoreBackend)
	assert.Equal(t, "Members", cfg.MembersTable)
	assert.Equal(t, "ConversationMessages", cfg.MessagesTable)
	assert.Equal(t, "MemberRatings", cfg.RatingsTable)
	assert.Equal(t, 5*time.Minute, cfg.PresignTTL)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.False(t, cfg.HandshakeResetAfterDecision)
	assert.Equal(t, 2, cfg.MaxPartners)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("HANDSHAKE_RESET_AFTER_DECISION", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("POLL_INTERVAL", "250ms")

	var cfg Config
	require.NoError(t, Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.True(t, cfg.HandshakeResetAfterDecision)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EVIDENCE_BUCKET=from-file\nMAX_PARTNERS=3\n"), 0o600))
	t.Setenv("MAX_PARTNERS", "5")
	t.Cleanup(func() { os.Unsetenv("EVIDENCE_BUCKET") })

	var cfg Config
	require.NoError(t, Load(&cfg, path))

	assert.Equal(t, "from-file", cfg.EvidenceBucket)
	assert.Equal(t, 5, cfg.MaxPartners, "environment wins over the file")
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	var cfg Config
	assert.Error(t, Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "loud")
	assert.Error(t, Load(&cfg, filepath.Join(t.TempDir(), "missing.env")))
}

func TestNewLogger(t *testing.T) {
	cfg := Config{LogLevel: "debug"}
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
