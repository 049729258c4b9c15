package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/divetag/internal/config"
	"github.com/hyperjump/divetag/internal/divelog"
	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/metadata"
	"github.com/hyperjump/divetag/internal/storage"
	"github.com/hyperjump/divetag/pkg/utils"
)

const configFileName = "config.yaml"

type commandContext struct {
	configFlag *string
	debugFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, debugFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, debugFlag: debugFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configPath, c.configErr = loadConfig(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) debug() bool {
	cfg, _ := c.ensureConfig()
	return (c.debugFlag != nil && *c.debugFlag) || (cfg != nil && cfg.Debug)
}

// logger returns the console logger. verbose raises it to debug level like --debug.
func (c *commandContext) logger(verbose bool) *zap.Logger {
	logger := utils.NewConsoleLogger(c.debug() || verbose)
	if c.configPath != "" {
		logger.Debug("config loaded", zap.String("config_path", c.configPath))
	}
	return logger
}

// loadConfig loads config from path. An empty path looks for config.yaml in the
// current directory and then in ~/.divetag; when neither exists the defaults
// are used. Returns the config and the path actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	for _, candidate := range defaultConfigPaths() {
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := config.Load(candidate)
			if err != nil {
				return nil, "", err
			}
			return cfg, candidate, nil
		}
	}
	return config.Default(), "", nil
}

func defaultConfigPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, configFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".divetag", configFileName))
	}
	return paths
}

// loadIndex parses the dive log and indexes its dives. A log without any
// usable dive is an error.
func loadIndex(path string, logger *zap.Logger) (*matcher.DiveIndex, error) {
	if path == "" {
		return nil, errors.New("a dive log is required (--subsurface-file)")
	}
	logger.Info("parsing dive log", zap.String("path", path))
	dives, err := divelog.NewParser(divelog.WithLogger(logger)).ParseFile(path)
	if err != nil {
		return nil, err
	}
	if len(dives) == 0 {
		return nil, fmt.Errorf("no dives found in %s", path)
	}
	logger.Info("dive log loaded", zap.Int("dives", len(dives)))
	return matcher.NewIndex(dives), nil
}

func policyFor(cfg *config.Config) matcher.Policy {
	return matcher.Policy{
		NearWindow: cfg.Matching.NearWindow,
		MaxChoices: cfg.Matching.MaxChoices,
	}
}

func newChain(cfg *config.Config, logger *zap.Logger) *metadata.Chain {
	return metadata.NewDefaultChain(metadata.Options{
		ExifToolBinary:  cfg.ExifTool.Binary,
		ExifToolTimeout: cfg.ExifTool.Timeout,
		Logger:          logger,
	})
}

func openLedger(cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return store, nil
}
