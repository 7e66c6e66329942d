// internal/config/detector.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when no configuration file exists at the
// given path.
var ErrConfigNotFound = errors.New("configuration file not found")

// rootConfig is the part of a configuration file read before the backend
// is known.
type rootConfig struct {
	Backend BackendConfig `yaml:"backend"`
}

// DetectBackendType determines the backend type from the configuration file.
// LOCKGUARD_BACKEND_TYPE, or LOCKGUARD_BACKEND, overrides the file.
func DetectBackendType(configPath string) (string, error) {
	if envType := os.Getenv(EnvPrefix + "_BACKEND_TYPE"); envType != "" {
		return normalizeBackendType(envType), nil
	}
	if envType := os.Getenv(EnvPrefix + "_BACKEND"); envType != "" {
		return normalizeBackendType(envType), nil
	}

	configFile, err := resolveConfigFilePath(configPath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}

	var config rootConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return "", fmt.Errorf("invalid configuration file: %w", err)
	}

	if config.Backend.Type == "" {
		return "", errors.New("backend type not specified in config")
	}

	return normalizeBackendType(config.Backend.Type), nil
}

// normalizeBackendType maps the accepted spellings of a backend onto its
// registered store name.
func normalizeBackendType(backend string) string {
	switch b := strings.ToLower(strings.TrimSpace(backend)); b {
	case "scylla", "scylladb":
		return "scylladb"
	case "dynamo", "dynamodb":
		return "dynamodb"
	case "etcd", "etcdv3":
		return "etcd"
	case "inmemory", "in-memory", "memory":
		return "memory"
	default:
		return b
	}
}

// resolveConfigFilePath returns configPath when it names a file, or the
// first known configuration file inside it when it names a directory.
func resolveConfigFilePath(configPath string) (string, error) {
	if configPath == "" {
		return "", fmt.Errorf("%w: empty path", ErrConfigNotFound)
	}

	fileInfo, err := os.Stat(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w at %s", ErrConfigNotFound, configPath)
		}
		return "", err
	}

	if !fileInfo.IsDir() {
		return configPath, nil
	}

	candidates := []string{
		filepath.Join(configPath, "config.yaml"),
		filepath.Join(configPath, "config.yml"),
		filepath.Join(configPath, "lockguard.yaml"),
		filepath.Join(configPath, "lockguard.yml"),
	}
	for _, candidate := range candidates {
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w in directory %s", ErrConfigNotFound, configPath)
}
