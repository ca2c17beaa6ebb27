// Package config defines the application configuration and the functions that
// load and validate it.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iwvelando/sprint-budget/internal/budget"
	"github.com/iwvelando/sprint-budget/internal/snapshot"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for sprint-budget.
type Configuration struct {
	Parameters budget.Parameters `yaml:"parameters"`
	Planning   PlanningConfig    `yaml:"planning"`
	Storage    StorageConfig     `yaml:"storage"`
	Auth       AuthConfig        `yaml:"auth"`
	Logging    LoggingConfig     `yaml:"logging,omitempty"`
	Output     OutputConfig      `yaml:"output,omitempty"`
}

// PlanningConfig tunes ledger reconciliation.
type PlanningConfig struct {
	MaxIterations      int `yaml:"maxIterations"`
	ReconcileThreshold int `yaml:"reconcileThreshold"`
}

// StorageConfig locates device storage and the optional remote store.
type StorageConfig struct {
	Dir           string       `yaml:"dir,omitempty"`
	RetentionDays int          `yaml:"retentionDays"`
	MergePolicy   string       `yaml:"mergePolicy,omitempty"` // dedup, keepAll
	Remote        RemoteConfig `yaml:"remote"`
}

// RemoteConfig selects the remote snapshot store.
type RemoteConfig struct {
	Kind   string `yaml:"kind"`             // none, sql, http
	Driver string `yaml:"driver,omitempty"` // postgres, sqlite
	DSN    string `yaml:"dsn,omitempty"`
	URL    string `yaml:"url,omitempty"`
}

// AuthConfig selects how credentials are checked.
type AuthConfig struct {
	Mode        string `yaml:"mode"` // static, remote
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	IdentityURL string `yaml:"identityURL,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// ReconcileOptions converts the planning settings for the budget package.
func (c *Configuration) ReconcileOptions() budget.ReconcileOptions {
	return budget.ReconcileOptions{
		Threshold:     c.Planning.ReconcileThreshold,
		MaxIterations: c.Planning.MaxIterations,
	}
}

// SnapshotOptions converts the storage settings for the snapshot service.
func (c *Configuration) SnapshotOptions() snapshot.ServiceOptions {
	policy, _ := snapshot.ParseMergePolicy(c.Storage.MergePolicy)
	return snapshot.ServiceOptions{
		Policy:    policy,
		Retention: time.Duration(c.Storage.RetentionDays) * 24 * time.Hour,
	}
}

// StorageDir returns the device storage directory, defaulting to the user
// config directory.
func (c *Configuration) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, constants.AppDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return constants.AppDirName
	}
	return filepath.Join(home, ".config", constants.AppDirName)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("parameters.costPerHour", constants.DefaultCostPerHour)
	v.SetDefault("parameters.budgetSize", constants.DefaultBudgetSize)
	v.SetDefault("parameters.teamSize", constants.DefaultTeamSize)
	v.SetDefault("parameters.workingDaysPerIteration", constants.DefaultWorkingDaysPerIteration)
	v.SetDefault("parameters.currency", constants.DefaultCurrency)
	v.SetDefault("planning.maxIterations", constants.MaxIterations)
	v.SetDefault("planning.reconcileThreshold", constants.DefaultReconcileThreshold)
	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.retentionDays", constants.DefaultRetentionDays)
	v.SetDefault("storage.mergePolicy", "dedup")
	v.SetDefault("storage.remote.kind", constants.RemoteKindNone)
	v.SetDefault("storage.remote.driver", constants.DriverPostgres)
	v.SetDefault("storage.remote.dsn", "")
	v.SetDefault("storage.remote.url", "")
	v.SetDefault("auth.mode", constants.AuthModeStatic)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.identityURL", "")
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", "")
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. A missing file yields the defaults, and environment
// variables (optionally from a .env file) override both.
func LoadConfiguration(configPath string) (*Configuration, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); !os.IsNotExist(statErr) {
				return nil, fmt.Errorf("error reading config file, %s", err)
			}
		}
	}
	return decode(v)
}

// LoadConfigurationFromReader loads a YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	configuration.normalize()
	return &configuration, nil
}

func (c *Configuration) normalize() {
	c.Storage.Remote.Kind = strings.ToLower(strings.TrimSpace(c.Storage.Remote.Kind))
	if c.Storage.Remote.Kind == "" {
		c.Storage.Remote.Kind = constants.RemoteKindNone
	}
	c.Storage.Remote.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Remote.Driver))
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	if c.Auth.Mode == "" {
		c.Auth.Mode = constants.AuthModeStatic
	}
	if strings.TrimSpace(c.Parameters.Currency) == "" {
		c.Parameters.Currency = constants.DefaultCurrency
	}
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if err := c.Parameters.Validate(); err != nil {
		warnings = append(warnings, fmt.Sprintf("default parameters are unusable: %v", err))
	}
	if c.Planning.MaxIterations <= 0 || c.Planning.MaxIterations > constants.MaxIterations {
		warnings = append(warnings, fmt.Sprintf("planning.maxIterations %d is outside 1..%d; using %d",
			c.Planning.MaxIterations, constants.MaxIterations, constants.MaxIterations))
		c.Planning.MaxIterations = constants.MaxIterations
	}
	if c.Planning.ReconcileThreshold < 0 {
		warnings = append(warnings, fmt.Sprintf("planning.reconcileThreshold %d is negative; using %d",
			c.Planning.ReconcileThreshold, constants.DefaultReconcileThreshold))
		c.Planning.ReconcileThreshold = constants.DefaultReconcileThreshold
	}
	if c.Storage.RetentionDays <= 0 {
		warnings = append(warnings, fmt.Sprintf("storage.retentionDays %d is not positive; using %d",
			c.Storage.RetentionDays, constants.DefaultRetentionDays))
		c.Storage.RetentionDays = constants.DefaultRetentionDays
	}

	if _, err := snapshot.ParseMergePolicy(c.Storage.MergePolicy); err != nil {
		warnings = append(warnings, fmt.Sprintf("storage.mergePolicy: %v; using dedup", err))
		c.Storage.MergePolicy = "dedup"
	}

	switch c.Storage.Remote.Kind {
	case constants.RemoteKindNone:
	case constants.RemoteKindSQL:
		if c.Storage.Remote.Driver != constants.DriverPostgres && c.Storage.Remote.Driver != constants.DriverSQLite {
			warnings = append(warnings, fmt.Sprintf("storage.remote.driver %q is not supported; remote persistence disabled", c.Storage.Remote.Driver))
			c.Storage.Remote.Kind = constants.RemoteKindNone
		} else if c.Storage.Remote.DSN == "" {
			warnings = append(warnings, "storage.remote.dsn is empty; remote persistence disabled")
			c.Storage.Remote.Kind = constants.RemoteKindNone
		}
	case constants.RemoteKindHTTP:
		if c.Storage.Remote.URL == "" {
			warnings = append(warnings, "storage.remote.url is empty; remote persistence disabled")
			c.Storage.Remote.Kind = constants.RemoteKindNone
		}
	default:
		warnings = append(warnings, fmt.Sprintf("storage.remote.kind %q is not supported; remote persistence disabled", c.Storage.Remote.Kind))
		c.Storage.Remote.Kind = constants.RemoteKindNone
	}

	switch c.Auth.Mode {
	case constants.AuthModeStatic:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			warnings = append(warnings, "auth.username or auth.password is empty; login will always fail")
		}
	case constants.AuthModeRemote:
		if c.Auth.IdentityURL == "" {
			warnings = append(warnings, "auth.identityURL is empty; login will always fail")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("auth.mode %q is not supported; using %s", c.Auth.Mode, constants.AuthModeStatic))
		c.Auth.Mode = constants.AuthModeStatic
	}

	// The snapshot API only accepts tokens issued by its own login endpoint.
	if c.Storage.Remote.Kind == constants.RemoteKindHTTP && c.Auth.Mode != constants.AuthModeRemote {
		warnings = append(warnings, fmt.Sprintf("storage.remote.kind %s requires auth.mode %s; remote persistence disabled",
			constants.RemoteKindHTTP, constants.AuthModeRemote))
		c.Storage.Remote.Kind = constants.RemoteKindNone
	}

	return warnings
}
