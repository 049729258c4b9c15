package config

import (
	"time"

	"github.com/hyperjump/divetag/internal/metadata"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Matching.NearWindow <= 0 {
		cfg.Matching.NearWindow = 2 * time.Hour
	}
	if cfg.Matching.MaxChoices <= 0 {
		cfg.Matching.MaxChoices = 5
	}
	if cfg.Matching.CameraTag == "" {
		cfg.Matching.CameraTag = "camera"
	}
	if cfg.Media.ImageExtensions == nil {
		cfg.Media.ImageExtensions = metadata.ImageExtensions()
	}
	if cfg.Media.VideoExtensions == nil {
		cfg.Media.VideoExtensions = append([]string(nil), metadata.VideoExtensions...)
	}
	if cfg.ExifTool.Binary == "" {
		cfg.ExifTool.Binary = "exiftool"
	}
	if cfg.ExifTool.Timeout <= 0 {
		cfg.ExifTool.Timeout = metadata.DefaultExifToolTimeout
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".divetag/ledger.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
