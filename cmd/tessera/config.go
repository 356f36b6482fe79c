package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the tessera configuration file
// (~/.config/tessera/config.yaml). Pointer fields distinguish "not set"
// from a meaningful zero value.
type Config struct {
	N         *int64 `yaml:"n"`
	Mb        *int64 `yaml:"mb"`
	Nb        *int64 `yaml:"nb"`
	P         *int64 `yaml:"p"`
	Q         *int64 `yaml:"q"`
	Lookahead *int64 `yaml:"lookahead"`
	Target    string `yaml:"target"`
	Seed      *int64 `yaml:"seed"`
	Input     string `yaml:"input"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tessera", "config.yaml")
}

// applyMatrixConfig applies config file defaults to the shared matrix
// flags when the corresponding CLI flag was not explicitly set.
func applyMatrixConfig(c *cli.Command, cfg Config) {
	if cfg.N != nil && !c.IsSet("n") {
		n = *cfg.N
	}
	if cfg.Mb != nil && !c.IsSet("mb") {
		mb = *cfg.Mb
	}
	if cfg.Nb != nil && !c.IsSet("nb") {
		nb = *cfg.Nb
	}
	if cfg.P != nil && !c.IsSet("p") {
		p = *cfg.P
	}
	if cfg.Q != nil && !c.IsSet("q") {
		q = *cfg.Q
	}
	if cfg.Lookahead != nil && !c.IsSet("lookahead") {
		lookahead = *cfg.Lookahead
	}
	if cfg.Target != "" && !c.IsSet("target") {
		target = cfg.Target
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
	if cfg.Input != "" && !c.IsSet("input") {
		inputPath = cfg.Input
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve-only variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyMatrixConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
