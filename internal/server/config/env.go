package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables, loading an
// optional .env file from the working directory first. A missing .env file
// is not an error; explicitly set environment variables win over the file
// because godotenv never overwrites existing variables.
//
// Recognized variables:
//
//	TASKGRID_ADDRESS         HTTP bind address
//	TASKGRID_DATABASE_DSN    PostgreSQL DSN
//	TASKGRID_SECRET_KEY      JWT HMAC secret
//	TASKGRID_TOKEN_TTL       access token lifetime (Go duration, e.g. "30m")
//	TASKGRID_TOKEN_ISSUER    issuer claim
//	TASKGRID_TOKEN_AUDIENCE  audience claim
//	TASKGRID_ADMIN_USERNAME  admin account name
//	TASKGRID_ATTEMPT_LIMIT   failed logins allowed inside the window
//	TASKGRID_LOCKOUT_WINDOW  lockout window (Go duration, e.g. "5m")
//	TASKGRID_TASK_MODE       "peruser" or "broadcast"
//	TASKGRID_REDIS_ADDR      redis host:port for shared lockout state
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString(&config.EndpointAddrHTTP, "TASKGRID_ADDRESS")
	setString(&config.DatabaseDSN, "TASKGRID_DATABASE_DSN")
	setString(&config.SecretKey, "TASKGRID_SECRET_KEY")
	setDuration(&config.AccessTokenValidityDuration, "TASKGRID_TOKEN_TTL")
	setString(&config.TokenIssuer, "TASKGRID_TOKEN_ISSUER")
	setString(&config.TokenAudience, "TASKGRID_TOKEN_AUDIENCE")
	setString(&config.AdminUsername, "TASKGRID_ADMIN_USERNAME")
	setInt(&config.LoginAttemptLimit, "TASKGRID_ATTEMPT_LIMIT")
	setDuration(&config.LoginLockoutWindow, "TASKGRID_LOCKOUT_WINDOW")
	setString(&config.TaskMode, "TASKGRID_TASK_MODE")
	setString(&config.RedisAddr, "TASKGRID_REDIS_ADDR")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
