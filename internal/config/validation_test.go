package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/sprint-budget/pkg/constants"
)

func TestValidateConfigurationValid(t *testing.T) {
	conf, err := LoadConfigurationFromReader(strings.NewReader(`
parameters:
  costPerHour: 80
  budgetSize: 250000
  teamSize: 4
  workingDaysPerIteration: 10
storage:
  remote:
    kind: sql
    driver: sqlite
    dsn: /tmp/snapshots.db
auth:
  username: planner
  password: secret
`))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}

	if warnings := conf.ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("expected no warnings for a valid configuration, got %v", warnings)
	}
	if conf.Parameters.Currency != constants.DefaultCurrency {
		t.Errorf("currency = %q, want default", conf.Parameters.Currency)
	}
}

func TestValidateConfigurationEdgeCases(t *testing.T) {
	conf, err := LoadConfigurationFromReader(strings.NewReader(`
storage:
  retentionDays: 0
  remote:
    kind: " SQL "
    driver: Postgres
    dsn: postgres://localhost/budget
auth:
  mode: ldap
`))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}

	warnings := conf.ValidateConfiguration()
	if conf.Storage.Remote.Kind != constants.RemoteKindSQL || conf.Storage.Remote.Driver != constants.DriverPostgres {
		t.Errorf("remote settings not normalized: %+v", conf.Storage.Remote)
	}
	if conf.Storage.RetentionDays != constants.DefaultRetentionDays {
		t.Errorf("retentionDays = %d, want %d", conf.Storage.RetentionDays, constants.DefaultRetentionDays)
	}
	if conf.Auth.Mode != constants.AuthModeStatic {
		t.Errorf("auth mode = %q, want fallback to static", conf.Auth.Mode)
	}
	// retention and the unknown auth mode
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestValidateConfigurationHTTPRemoteNeedsRemoteAuth(t *testing.T) {
	tests := []struct {
		name       string
		auth       string
		wantKind   string
		wantWarned bool
	}{
		{
			name:       "static auth",
			auth:       "auth:\n  mode: static\n  username: planner\n  password: secret\n",
			wantKind:   constants.RemoteKindNone,
			wantWarned: true,
		},
		{
			name:       "unknown auth falls back to static",
			auth:       "auth:\n  mode: ldap\n  username: planner\n  password: secret\n",
			wantKind:   constants.RemoteKindNone,
			wantWarned: true,
		},
		{
			name:     "remote auth",
			auth:     "auth:\n  mode: remote\n  identityURL: https://budget.example.com/api/auth/login\n",
			wantKind: constants.RemoteKindHTTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := LoadConfigurationFromReader(strings.NewReader(
				"storage:\n  remote:\n    kind: http\n    url: https://budget.example.com\n" + tt.auth))
			if err != nil {
				t.Fatalf("LoadConfigurationFromReader() error = %v", err)
			}
			warnings := conf.ValidateConfiguration()
			if conf.Storage.Remote.Kind != tt.wantKind {
				t.Errorf("remote kind = %q, want %q", conf.Storage.Remote.Kind, tt.wantKind)
			}
			warned := false
			for _, w := range warnings {
				if strings.Contains(w, "requires auth.mode remote") {
					warned = true
				}
			}
			if warned != tt.wantWarned {
				t.Errorf("warned = %v, want %v: %v", warned, tt.wantWarned, warnings)
			}
		})
	}
}

func TestLoadConfigurationDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	key := constants.EnvPrefix + "_AUTH_USERNAME"
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	conf, err := LoadConfiguration(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if conf.Auth.Username != "from-dotenv" {
		t.Errorf("username = %q, want value from .env", conf.Auth.Username)
	}
}

func TestStorageDirFollowsXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	conf := &Configuration{}
	if got, want := conf.StorageDir(), filepath.Join(xdg, constants.AppDirName); got != want {
		t.Errorf("StorageDir() = %q, want %q", got, want)
	}
}
