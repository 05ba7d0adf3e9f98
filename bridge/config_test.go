package bridge

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearTS3Env(t *testing.T) {
	t.Helper()
	keys := []string{
		"TSBOT_TS3_HOST", "TSBOT_TS3_PORT", "TSBOT_TS3_NICKNAME",
		"TSBOT_TS3_SERVER_PASSWORD", "TSBOT_TS3_CHANNEL_PASSWORD",
		"TSBOT_TS3_CHANNEL_PATH", "TSBOT_TS3_CHANNEL_ID", "TSBOT_TS3_IDENTITY",
		"TSBOT_TS3_IDENTITY_FILE", "TSBOT_AVATAR_DIR",
		"TSBOT_PERSISTED_STATE_FILE", "TSBOT_LOG_LEVEL", "TSBOT_LOG_FILE",
		"TSBOT_LISTEN_ADDR",
	}
	for _, k := range keys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearTS3Env(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, defaultTS3Host, cfg.TS3Host)
	assert.Equal(t, defaultTS3Port, cfg.TS3Port)
	assert.Equal(t, defaultTS3Nickname, cfg.TS3Nickname)
	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
}

func TestLoadConfigOverridesFromEnv(t *testing.T) {
	clearTS3Env(t)
	t.Setenv("TSBOT_TS3_HOST", "voice.example.com")
	t.Setenv("TSBOT_TS3_PORT", "9988")
	t.Setenv("TSBOT_TS3_NICKNAME", "dj-bot")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "voice.example.com", cfg.TS3Host)
	assert.Equal(t, 9988, cfg.TS3Port)
	assert.Equal(t, "dj-bot", cfg.TS3Nickname)
}

func TestLoadConfigRejectsInvalidPort(t *testing.T) {
	clearTS3Env(t)
	t.Setenv("TSBOT_TS3_PORT", "70000")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestResolvePathPassesThroughAbsolute(t *testing.T) {
	assert.Equal(t, "/abs/path", resolvePath("/root", "/abs/path"))
}

func TestResolvePathJoinsRelative(t *testing.T) {
	assert.Equal(t, "/root/logs/x.json", resolvePath("/root", "logs/x.json"))
}
