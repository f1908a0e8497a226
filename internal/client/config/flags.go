package config

import (
	"flag"
	"os"

	"github.com/kpawlak/taskgrid/internal/flagx"
)

// parseFlags populates selected client Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   base URL of the server (e.g., "http://127.0.0.1:8080")
//	-k string   directory holding the RSA keypair
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerURL, "a", config.ServerURL, "server base URL")
	fs.StringVar(&config.KeyDir, "k", config.KeyDir, "key directory")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
