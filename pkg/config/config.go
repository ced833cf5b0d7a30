package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileEnvKey names the environment variable pointing at an optional YAML
// file. The file uses the same keys as the environment, which overrides it.
const FileEnvKey = "REFRAME_CONFIG_FILE"

// Source resolves configuration keys from the YAML file and the environment.
type Source struct {
	k *koanf.Koanf
}

// NewSource loads the optional config file and then the process environment.
// A broken file is logged and skipped so the environment still applies.
func NewSource() *Source {
	k := koanf.New(".")
	if path := strings.TrimSpace(os.Getenv(FileEnvKey)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			log.Printf("config file %s ignored: %v", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		log.Printf("environment config ignored: %v", err)
	}
	return &Source{k: k}
}

// GetString retrieves a key or returns a fallback when unset.
func (s *Source) GetString(key, fallback string) string {
	if s.k.Exists(key) {
		return s.k.String(key)
	}
	return fallback
}

// GetInt retrieves a key as integer or returns fallback.
func (s *Source) GetInt(key string, fallback int) int {
	if !s.k.Exists(key) {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(s.k.String(key)))
	if err != nil {
		log.Printf("invalid value for %s: %v", key, err)
		return fallback
	}
	return parsed
}

// GetFloat retrieves a key as float64 or returns fallback.
func (s *Source) GetFloat(key string, fallback float64) float64 {
	if !s.k.Exists(key) {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(s.k.String(key)), 64)
	if err != nil {
		log.Printf("invalid value for %s: %v", key, err)
		return fallback
	}
	return parsed
}

// GetBool retrieves a key as bool or returns fallback.
func (s *Source) GetBool(key string, fallback bool) bool {
	if !s.k.Exists(key) {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(s.k.String(key)))
	if err != nil {
		log.Printf("invalid value for %s: %v", key, err)
		return fallback
	}
	return parsed
}

// GetHours reads an integer number of hours.
func (s *Source) GetHours(key string, fallback int) time.Duration {
	return time.Duration(s.GetInt(key, fallback)) * time.Hour
}
