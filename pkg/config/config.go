// Package config loads the range configuration from YAML and applies
// defaults before the orchestrator sees it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bsinger98/MHBench/pkg/validation"
)

// CloudConfig identifies the cloud deployment target.
type CloudConfig struct {
	// CloudName selects the entry in clouds.yaml the provider client uses.
	CloudName string `yaml:"cloud_name" validate:"required"`
	// ExternalIP is the address on the provider's external network used to
	// locate the management host among live servers.
	ExternalIP string `yaml:"external_ip" validate:"required"`
	KeyName    string `yaml:"key_name" validate:"required"`
	KeyPath    string `yaml:"key_path" validate:"required"`
}

// AnsibleConfig locates playbooks and their logs.
type AnsibleConfig struct {
	ActionsDir string `yaml:"actions_dir" validate:"required"`
	LogDir     string `yaml:"log_dir"`
}

// TerraformConfig locates the infrastructure definitions.
type TerraformConfig struct {
	BaseDir string `yaml:"base_dir"`
	VarFile string `yaml:"var_file"`
}

// ProvisionConfig tunes host activation batching.
type ProvisionConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxWait      time.Duration `yaml:"max_wait"`
}

// StoreConfig selects where topology documents live. Bucket empty means
// the local directory backend.
type StoreConfig struct {
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

// Config is the root configuration document.
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud"`
	Ansible   AnsibleConfig   `yaml:"ansible"`
	Terraform TerraformConfig `yaml:"terraform"`
	Provision ProvisionConfig `yaml:"provision"`
	Store     StoreConfig     `yaml:"store"`

	// EventBusAddr is the mangos listen address for deployment events.
	// Empty disables event publishing.
	EventBusAddr string `yaml:"event_bus_addr"`
	// JournalURL is the PostgreSQL DSN for the deployment journal.
	// Empty disables journaling.
	JournalURL string `yaml:"journal_url"`
	// MonitorAddr is the listen address for the health and metrics
	// endpoint served during deployments. Empty disables it.
	MonitorAddr string `yaml:"monitor_addr"`

	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`
}

// Default returns a config with every tunable at its default.
func Default() *Config {
	return &Config{
		Ansible:   AnsibleConfig{LogDir: "logs"},
		Terraform: TerraformConfig{BaseDir: "terraform"},
		Provision: ProvisionConfig{
			BatchSize:    10,
			PollInterval: 5 * time.Second,
			MaxWait:      600 * time.Second,
		},
		Store:    StoreConfig{Dir: "environments"},
		LogDir:   "logs",
		LogLevel: "info",
	}
}

// Load reads a YAML config file, fills defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, fills defaults, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Provision.BatchSize = validation.DefaultOrInt(c.Provision.BatchSize, 10)
	c.Provision.PollInterval = validation.DefaultOrDuration(c.Provision.PollInterval, 5*time.Second)
	c.Provision.MaxWait = validation.DefaultOrDuration(c.Provision.MaxWait, 600*time.Second)
	c.Ansible.LogDir = validation.DefaultOr(c.Ansible.LogDir, c.LogDir)
	c.LogLevel = validation.DefaultOr(c.LogLevel, "info")
}

// Validate checks the decoded configuration, naming every offending field.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return validation.NewConfigValidator("Config").
		Custom("Cloud.ExternalIP", func() error {
			return validation.ValidateIPAddress(c.Cloud.ExternalIP)
		}).
		Positive("Provision.BatchSize", c.Provision.BatchSize).
		MinDuration("Provision.PollInterval", c.Provision.PollInterval, time.Second).
		MinDuration("Provision.MaxWait", c.Provision.MaxWait, c.Provision.PollInterval).
		OneOf("LogLevel", c.LogLevel, []string{"debug", "info", "warn", "error"}).
		When(c.Store.Bucket != "", func(cv *validation.ConfigValidator) {
			cv.Required("Store.Region", c.Store.Region)
		}).
		Validate()
}
