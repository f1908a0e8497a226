package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/kpawlak/taskgrid/internal/flagx"
	"github.com/kpawlak/taskgrid/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	TokenIssuer                 string         `json:"token_issuer"`
	TokenAudience               string         `json:"token_audience"`
	AdminUsername               string         `json:"admin_username"`
	LoginAttemptLimit           int            `json:"login_attempt_limit"`
	LoginLockoutWindow          timex.Duration `json:"login_lockout_window"`
	TaskMode                    string         `json:"task_mode"`
	RedisAddr                   string         `json:"redis_addr"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags. If neither
// is set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.TokenIssuer = c.TokenIssuer
	config.TokenAudience = c.TokenAudience
	config.AdminUsername = c.AdminUsername
	config.LoginAttemptLimit = c.LoginAttemptLimit
	config.LoginLockoutWindow = time.Duration(c.LoginLockoutWindow.Duration)
	config.TaskMode = c.TaskMode
	config.RedisAddr = c.RedisAddr
}
