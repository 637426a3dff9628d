package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

type Config struct {
	LogLevel string              `toml:"log_level" yaml:"log_level"`
	Storages map[string]Endpoint `toml:"storages" yaml:"storages"`
	Tasks    []Task              `toml:"tasks" yaml:"tasks"`
}

// Endpoint names one storage: its driver type, root path and credentials.
type Endpoint struct {
	Type string `toml:"type" yaml:"type"` // local, sftp, ftp, minio
	Path string `toml:"path" yaml:"path"`
	Auth *Auth  `toml:"auth,omitempty" yaml:"auth,omitempty"`
}

type Task struct {
	Name            string `toml:"name" yaml:"name"`
	Cron            string `toml:"cron" yaml:"cron"`
	SourceType      string `toml:"source_type" yaml:"source_type"`
	SourcePath      string `toml:"source_path" yaml:"source_path"`
	SourceRegex     string `toml:"source_regex" yaml:"source_regex"`
	TargetType      string `toml:"target_type" yaml:"target_type"`
	TargetPath      string `toml:"target_path" yaml:"target_path"`
	RetentionDays   int    `toml:"retention_days" yaml:"retention_days"`       // delete target files transferred longer ago
	SourceNewerDays int    `toml:"source_newer_days" yaml:"source_newer_days"` // only pick files modified within this many days
	SourceAuth      *Auth  `toml:"source_auth,omitempty" yaml:"source_auth,omitempty"`
	TargetAuth      *Auth  `toml:"target_auth,omitempty" yaml:"target_auth,omitempty"`
}

func (t Task) Source() Endpoint {
	return Endpoint{Type: t.SourceType, Path: t.SourcePath, Auth: t.SourceAuth}
}

func (t Task) Target() Endpoint {
	return Endpoint{Type: t.TargetType, Path: t.TargetPath, Auth: t.TargetAuth}
}

// Auth holds connection settings. For minio, User and Password are the
// access key and secret key.
type Auth struct {
	Host            string `toml:"host" yaml:"host"`
	Port            int    `toml:"port" yaml:"port"`
	User            string `toml:"user" yaml:"user"`
	Password        string `toml:"password" yaml:"password"`
	KeyPath         string `toml:"key_path" yaml:"key_path"`
	KnownHosts      string `toml:"known_hosts" yaml:"known_hosts"`
	InsecureHostKey bool   `toml:"insecure_host_key" yaml:"insecure_host_key"`
	Bucket          string `toml:"bucket" yaml:"bucket"`
	Region          string `toml:"region" yaml:"region"`
	Secure          bool   `toml:"secure" yaml:"secure"`
}

// LoadConfig reads a TOML file, or YAML when the extension is .yaml/.yml.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = toml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Storage returns the named endpoint from the storages section.
func (c *Config) Storage(name string) (Endpoint, error) {
	ep, ok := c.Storages[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("storage %q is not configured", name)
	}
	return ep, nil
}
