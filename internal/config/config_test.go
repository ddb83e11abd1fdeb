package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		wantError  bool
	}{
		{
			name:       "Non-existent config file",
			configPath: "nonexistent.yaml",
			wantError:  true,
		},
		{
			name:       "Empty path uses defaults",
			configPath: "",
			wantError:  false,
		},
		{
			name:       "Test configuration",
			configPath: "../../test/test_config.yaml",
			wantError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfiguration(tt.configPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadConfiguration() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadConfiguration() error = %v", err)
				return
			}
			if config == nil {
				t.Errorf("LoadConfiguration() returned nil config")
			}
		})
	}
}

func TestLoadConfigurationDefaults(t *testing.T) {
	config, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if config.Environment != "production" {
		t.Errorf("Expected environment production, got %s", config.Environment)
	}
	if config.Data.Source != SourceFile || config.Data.Path != "Dashboard_Master_DE_v2.xlsx" {
		t.Errorf("Unexpected data defaults %+v", config.Data)
	}
	if config.Auth.Mode != AuthPassword || config.Auth.UsersFile != "users.json" {
		t.Errorf("Unexpected auth defaults %+v", config.Auth)
	}
	if !config.Export.Watermark {
		t.Errorf("Expected watermark to default to true")
	}
	if config.Output.Format != "pretty" || config.Logging.Level != "info" {
		t.Errorf("Unexpected output/logging defaults %+v %+v", config.Output, config.Logging)
	}
	if config.CacheTTL() != time.Hour {
		t.Errorf("Expected production cache TTL of 1h, got %v", config.CacheTTL())
	}
	if config.SessionTTL() != 8*time.Hour {
		t.Errorf("Expected session TTL of 8h, got %v", config.SessionTTL())
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestLoadConfigurationStructure(t *testing.T) {
	config, err := LoadConfiguration("../../test/test_config.yaml")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	profile := config.Profile()
	if profile.AppName != "Maschinen Dashboard [TEST]" {
		t.Errorf("Expected test app name, got %s", profile.AppName)
	}
	if len(profile.AllowedDomains) != 2 || profile.AllowedDomains[1] != "example.com" {
		t.Errorf("Unexpected allowed domains %v", profile.AllowedDomains)
	}
	if config.CacheTTL() != time.Minute {
		t.Errorf("Expected cache TTL of 1m, got %v", config.CacheTTL())
	}
	if _, ok := config.Profiles["production"]; !ok {
		t.Errorf("Expected built-in production profile to be kept")
	}
	if config.SessionTTL() != 30*time.Minute {
		t.Errorf("Expected session TTL of 30m, got %v", config.SessionTTL())
	}
	if len(config.Export.RedactColumns) != 2 || config.Export.RedactColumns[0] != "DB YTD" {
		t.Errorf("Unexpected redact columns %v", config.Export.RedactColumns)
	}
	if config.Export.AuditDB != ":memory:" {
		t.Errorf("Expected in-memory audit db, got %s", config.Export.AuditDB)
	}
	if config.Logging.Format != "console" || config.Output.Format != "csv" {
		t.Errorf("Unexpected logging/output %+v %+v", config.Logging, config.Output)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MD_DATA_SOURCE", "drive")
	t.Setenv("MD_OAUTH_CLIENT_SECRET", "s3cret")
	t.Setenv("MD_CHAT_APIKEY", "key")

	config, err := LoadConfiguration("../../test/test_config.yaml")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if config.Data.Source != SourceDrive {
		t.Errorf("Expected data source drive from environment, got %s", config.Data.Source)
	}
	if config.Auth.Google.ClientSecret != "s3cret" {
		t.Errorf("Expected client secret from environment, got %q", config.Auth.Google.ClientSecret)
	}
	if config.Chat.APIKey != "key" {
		t.Errorf("Expected chat api key from environment, got %q", config.Chat.APIKey)
	}
}

func TestProfileFallback(t *testing.T) {
	config := &Configuration{Environment: "staging", Profiles: DefaultProfiles()}

	if config.Profile().AppName != "Umsätze pro Maschine Dashboard" {
		t.Errorf("Unknown environment should use the production profile, got %+v", config.Profile())
	}

	empty := &Configuration{Environment: "staging"}
	if empty.CacheTTL() != time.Hour {
		t.Errorf("Expected fallback cache TTL of 1h, got %v", empty.CacheTTL())
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Configuration {
		return &Configuration{
			Data:    DataConfig{Source: SourceFile},
			Auth:    AuthConfig{Mode: AuthPassword},
			Logging: LoggingConfig{Format: "json"},
			Output:  OutputConfig{Format: "pretty"},
		}
	}

	tests := []struct {
		name      string
		modify    func(*Configuration)
		expectErr bool
	}{
		{"Valid", func(*Configuration) {}, false},
		{"Unknown source", func(c *Configuration) { c.Data.Source = "ftp" }, true},
		{"Unknown auth mode", func(c *Configuration) { c.Auth.Mode = "ldap" }, true},
		{"Unknown log format", func(c *Configuration) { c.Logging.Format = "xml" }, true},
		{"Empty log format", func(c *Configuration) { c.Logging.Format = "" }, false},
		{"Unknown output format", func(c *Configuration) { c.Output.Format = "json" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			err := c.Validate()
			if tt.expectErr && err == nil {
				t.Errorf("Validate() expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		config   Configuration
		contains []string
	}{
		{
			name: "Clean configuration only warns about chat",
			config: Configuration{
				Environment: "production",
				Profiles:    DefaultProfiles(),
				Data:        DataConfig{Source: SourceFile},
				Auth:        AuthConfig{Mode: AuthPassword},
			},
			contains: []string{"chat assistant disabled"},
		},
		{
			name: "Drive without google login",
			config: Configuration{
				Environment: "production",
				Profiles:    DefaultProfiles(),
				Data:        DataConfig{Source: SourceDrive},
				Auth:        AuthConfig{Mode: AuthPassword},
				Chat:        ChatConfig{APIKey: "k"},
			},
			contains: []string{"requires google login", "without driveFileId"},
		},
		{
			name: "Google without credentials and open production",
			config: Configuration{
				Environment: "staging",
				Profiles:    DefaultProfiles(),
				Data:        DataConfig{Source: SourceFile},
				Auth:        AuthConfig{Mode: AuthGoogle},
				Chat:        ChatConfig{APIKey: "k"},
			},
			contains: []string{"Unknown environment 'staging'", "without client id or secret"},
		},
		{
			name: "No authentication in production",
			config: Configuration{
				Environment: "production",
				Profiles:    DefaultProfiles(),
				Data:        DataConfig{Source: SourceUpload},
				Auth:        AuthConfig{Mode: AuthNone},
				Chat:        ChatConfig{APIKey: "k"},
			},
			contains: []string{"Authentication disabled in production"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := tt.config.ValidateConfiguration()
			if len(warnings) != len(tt.contains) {
				t.Fatalf("Expected %d warnings, got %d: %v", len(tt.contains), len(warnings), warnings)
			}
			joined := strings.Join(warnings, "\n")
			for _, want := range tt.contains {
				if !strings.Contains(joined, want) {
					t.Errorf("Expected warning containing %q in %v", want, warnings)
				}
			}
		})
	}
}

func TestLoadConfigurationInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("data: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfiguration(path); err == nil {
		t.Errorf("Expected error for malformed YAML")
	}
}
