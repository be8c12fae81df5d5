package main

import (
	"fmt"
	"os"

	"github.com/jihwankim/gradfuzz/pkg/config"
)

// loadConfig loads the configuration from file, auto-generating a default
// one if none exists yet (mirrors the teacher's own loadConfig in
// cmd/chaos-runner/utils.go).
func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = "config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("config file not found, writing defaults to %s\n", configPath)
		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	return cfg, nil
}
