package config

import (
	"flag"
	"os"
	"time"

	"github.com/kpawlak/taskgrid/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-i string   token issuer claim
//	-u string   token audience claim
//	-m string   admin username
//	-l int      failed login attempts allowed inside the lockout window
//	-w int      lockout window, minutes
//	-k string   task mode ("peruser" or "broadcast")
//	-r string   redis address for shared lockout state
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-i", "-u", "-m", "-l", "-w", "-k", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.TokenIssuer, "i", config.TokenIssuer, "token issuer")
	fs.StringVar(&config.TokenAudience, "u", config.TokenAudience, "token audience")
	fs.StringVar(&config.AdminUsername, "m", config.AdminUsername, "admin username")

	loginAttemptLimit := fs.Int("l", config.LoginAttemptLimit, "login attempt limit")
	loginLockoutWindow := fs.Int("w", int(config.LoginLockoutWindow.Minutes()), "login_lockout_window (in minutes)")

	fs.StringVar(&config.TaskMode, "k", config.TaskMode, "task mode (peruser or broadcast)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.LoginAttemptLimit = *loginAttemptLimit
	config.LoginLockoutWindow = time.Duration(*loginLockoutWindow) * time.Minute
}
