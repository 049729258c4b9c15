// Package config provides configuration loading and structs for divetag.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Matching MatchingConfig `yaml:"matching"`
	Media    MediaConfig    `yaml:"media"`
	ExifTool ExifToolConfig `yaml:"exiftool"`
	Sidecar  SidecarConfig  `yaml:"sidecar"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
}

// MatchingConfig tunes how capture times are paired with dives.
type MatchingConfig struct {
	// NearWindow is how far from a dive start a capture may fall and still be offered.
	NearWindow time.Duration `yaml:"near_window"`
	MaxChoices int           `yaml:"max_choices"`
	// CameraTag is the dive-log tag that marks dives where a camera was carried.
	CameraTag string `yaml:"camera_tag"`
}

// MediaConfig controls media discovery.
type MediaConfig struct {
	Recursive       bool     `yaml:"recursive"`
	ExcludeFolders  []string `yaml:"exclude_folders"`
	ImageExtensions []string `yaml:"image_extensions"`
	VideoExtensions []string `yaml:"video_extensions"`
}

// Extensions returns image and video extensions together.
func (m *MediaConfig) Extensions() []string {
	out := make([]string, 0, len(m.ImageExtensions)+len(m.VideoExtensions))
	out = append(out, m.ImageExtensions...)
	return append(out, m.VideoExtensions...)
}

// ExifToolConfig locates the exiftool binary.
type ExifToolConfig struct {
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

// SidecarConfig holds sidecar merge settings.
type SidecarConfig struct {
	// ExtraKeywords are added to every sidecar next to the site name.
	ExtraKeywords []string `yaml:"extra_keywords"`
}

// StorageConfig holds the ledger location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LockPath returns the run lock file that sits next to the ledger.
func (s *StorageConfig) LockPath() string {
	return s.DatabasePath + ".lock"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Debounce    time.Duration `yaml:"debounce"`
	Recursive   *bool         `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, "")
	return cfg
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
