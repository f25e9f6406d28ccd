package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the common prefix for every environment variable this
// package recognizes; a variable XYPRISS_SERVER_PORT overrides
// server.port.
const envPrefix = "XYPRISS_"

// ConfigFileEnvVar names the environment variable that points at an
// optional YAML/JSON config file, mirroring the teacher's APP_CONFIG_FILE.
// Exported so internal/app's hot-reload watcher can watch the same file
// Load reads without duplicating the name.
const ConfigFileEnvVar = "XYPRISS_CONFIG_FILE"

// Load builds a ServerConfig snapshot in three layers, each overriding the
// last: built-in Defaults, an optional config file named by
// XYPRISS_CONFIG_FILE, then XYPRISS_-prefixed environment variables.
func Load() (*ServerConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configFile := os.Getenv(ConfigFileEnvVar); configFile != "" {
		if err := loadFromFile(k, configFile); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg ServerConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML or JSON file.
func loadFromFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	var parser koanf.Parser
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}

	return k.Load(file.Provider(path), parser)
}

// loadEnv loads every XYPRISS_-prefixed environment variable, splitting the
// remainder on underscores into nested koanf keys (XYPRISS_SECURITY_CORS_MAXAGE
// becomes security.cors.maxage, matched case-insensitively against the
// keys already loaded, so it overrides security.cors.maxAge).
func loadEnv(k *koanf.Koanf) error {
	known := k.Keys()
	return k.Load(env.Provider(envPrefix, ".", func(s string) string {
		trimmed := strings.TrimPrefix(s, envPrefix)
		key := strings.ToLower(strings.ReplaceAll(trimmed, "_", "."))
		for _, existing := range known {
			if strings.EqualFold(existing, key) {
				return existing
			}
		}
		return key
	}), nil)
}
