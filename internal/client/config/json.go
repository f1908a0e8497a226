package config

import (
	"encoding/json"
	"os"

	"github.com/kpawlak/taskgrid/internal/flagx"
)

// JsonConfig is the JSON DTO for the client configuration file.
type JsonConfig struct {
	ServerURL string `json:"server_url"`
	KeyDir    string `json:"key_dir"`
}

// parseJson loads configuration values from the JSON file named by the -c
// or -config flags, when present. Invalid JSON panics; a missing flag means
// no file is loaded.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.ServerURL = c.ServerURL
	config.KeyDir = c.KeyDir
}
