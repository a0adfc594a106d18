package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configFileVar = "PORTAL_CONFIG"
	envFileVar    = "ENV_FILE"
)

type Config interface {
	EnvConfig
	ClientConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetDataFolder() string
	GetLogLevel() string
	GetLogFormat() string
}

type mainConfig struct {
	EnvVars
	Client
	Session
}

// New builds the configuration from the process environment, an optional
// .env file and an optional YAML file named by PORTAL_CONFIG. Process
// environment wins over .env, which wins over the YAML file.
func New() (Config, error) {
	if err := godotenv.Load(GetEnv(envFileVar, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.New godotenv.Load: %w", err)
	}

	file, err := loadFile(os.Getenv(configFileVar))
	if err != nil {
		return nil, err
	}
	return FromValues(file), nil
}

// FromValues builds a Config whose fallback values come from the given map
// rather than from a YAML file. Environment variables still take priority.
func FromValues(values map[string]string) Config {
	src := source{file: values}
	return mainConfig{
		EnvVars: EnvVars{src},
		Client:  Client{src},
		Session: Session{src},
	}
}

func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.loadFile ReadFile %s: %w", path, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config.loadFile yaml.Unmarshal %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[k] = fmt.Sprint(v)
	}
	return values, nil
}

// source resolves a key against the environment first and the file values second.
type source struct {
	file map[string]string
}

func (s source) get(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	if value, ok := s.file[name]; ok && value != "" {
		return value
	}
	return defaultValue
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
