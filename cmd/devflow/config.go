package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/metalagman/devflow/internal/config"
	"github.com/spf13/viper"
)

var defaultConfigPath = filepath.Join(".devflow", "config.yaml")

// resolveConfigPath makes path absolute against repoRoot. When the default
// YAML file is missing but a JSON one exists, the JSON file is used.
func resolveConfigPath(repoRoot, path string) string {
	if path == "" {
		path = defaultConfigPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	ext := filepath.Ext(path)
	if ext == ".yaml" || ext == ".yml" {
		alt := strings.TrimSuffix(path, ext) + ".json"
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return path
}

// loadConfig reads, validates and resolves the config. The returned map
// holds the agent definition for every role of the selected profile.
func loadConfig(repoRoot string) (config.Config, map[string]config.AgentConfig, error) {
	path := resolveConfigPath(repoRoot, viper.GetString("config"))
	viper.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "yml" {
		viper.SetConfigType("yaml")
	} else {
		viper.SetConfigType(ext)
	}
	if err := viper.ReadInConfig(); err != nil {
		return config.Config{}, nil, fmt.Errorf("read config %s: %w (run devflow init)", path, err)
	}
	if err := config.ValidateSettings(viper.AllSettings()); err != nil {
		return config.Config{}, nil, fmt.Errorf("%s: %w", path, err)
	}

	var cfg config.Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&cfg, hook); err != nil {
		return config.Config{}, nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	selected, agents, err := cfg.ResolveAgents(profileFlag)
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg.Profile = selected
	return cfg, agents, nil
}
