package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":             "www.example:9000",
		"database_dsn":                   "tasks.db",
		"secret_key":                     "my_secret_key",
		"access_token_validity_duration": "30m",
		"token_issuer":                   "issuer",
		"token_audience":                 "audience",
		"admin_username":                 "root",
		"login_attempt_limit":            3,
		"login_lockout_window":           "10m",
		"task_mode":                      "broadcast",
		"redis_addr":                     "localhost:6379",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "tasks.db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 30*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, "issuer", cfg.TokenIssuer)
		assert.Equal(t, "audience", cfg.TokenAudience)
		assert.Equal(t, "root", cfg.AdminUsername)
		assert.Equal(t, 3, cfg.LoginAttemptLimit)
		assert.Equal(t, 10*time.Minute, cfg.LoginLockoutWindow)
		assert.Equal(t, TaskModeBroadcast, cfg.TaskMode)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP:            "defaults:1234",
			DatabaseDSN:                 "tasks.db",
			SecretKey:                   "key",
			AccessTokenValidityDuration: 2 * time.Minute,
			LoginAttemptLimit:           7,
			LoginLockoutWindow:          time.Minute,
			TaskMode:                    TaskModePerUser,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "tasks.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 7, cfg.LoginAttemptLimit)
		assert.Equal(t, time.Minute, cfg.LoginLockoutWindow)
		assert.Equal(t, TaskModePerUser, cfg.TaskMode)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
