// Package config defines the application configuration and includes
// functions for loading and validating it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/agrof66/machine-dashboard/pkg/constants"
	"github.com/agrof66/machine-dashboard/pkg/validation"
	"github.com/spf13/viper"
)

// Data sources
const (
	SourceFile   = "file"
	SourceDrive  = "drive"
	SourceUpload = "upload"
)

// Authentication modes
const (
	AuthNone     = "none"
	AuthPassword = "password"
	AuthGoogle   = "google"
)

// Configuration holds all configuration for the machine dashboard.
type Configuration struct {
	Environment string             `mapstructure:"environment"`
	Profiles    map[string]Profile `mapstructure:"profiles"`
	Data        DataConfig         `mapstructure:"data"`
	Auth        AuthConfig         `mapstructure:"auth"`
	Export      ExportConfig       `mapstructure:"export"`
	Chat        ChatConfig         `mapstructure:"chat"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Output      OutputConfig       `mapstructure:"output"`
}

// Profile holds the per-environment settings.
type Profile struct {
	AppName        string   `mapstructure:"appName"`
	AllowedDomains []string `mapstructure:"allowedDomains"`
	CacheTTL       int      `mapstructure:"cacheTTL"` // seconds
	Debug          bool     `mapstructure:"debug"`
}

// DataConfig selects where the workbook comes from.
type DataConfig struct {
	Source      string `mapstructure:"source"` // file, drive, upload
	Path        string `mapstructure:"path"`
	DriveFileID string `mapstructure:"driveFileId"`
}

// AuthConfig holds login settings.
type AuthConfig struct {
	Mode       string       `mapstructure:"mode"` // none, password, google
	UsersFile  string       `mapstructure:"usersFile"`
	SessionTTL int          `mapstructure:"sessionTTL"` // seconds
	Google     GoogleConfig `mapstructure:"google"`
}

// GoogleConfig holds the OAuth client.
type GoogleConfig struct {
	ClientID     string `mapstructure:"clientId"`
	ClientSecret string `mapstructure:"clientSecret"`
	RedirectURL  string `mapstructure:"redirectURL"`
}

// ExportConfig controls downloads.
type ExportConfig struct {
	RedactColumns []string `mapstructure:"redactColumns"` // dropped for role user
	Watermark     bool     `mapstructure:"watermark"`
	AuditDB       string   `mapstructure:"auditDB"` // empty disables the download log
}

// ChatConfig configures the assistant.
type ChatConfig struct {
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"apiKey"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level,omitempty"`           // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format,omitempty"`         // json, console
	OutputFile string `mapstructure:"outputFile" yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `mapstructure:"format"` // pretty, csv
}

// DefaultProfiles returns the development and production profiles.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		constants.EnvironmentDevelopment: {
			AppName:        "Umsätze pro Maschine Dashboard [DEV]",
			AllowedDomains: []string{"gmail.com", "colle.eu"},
			CacheTTL:       300,
			Debug:          true,
		},
		constants.EnvironmentProduction: {
			AppName:        "Umsätze pro Maschine Dashboard",
			AllowedDomains: []string{"colle.eu"},
			CacheTTL:       3600,
			Debug:          false,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", constants.EnvironmentProduction)
	v.SetDefault("data.source", SourceFile)
	v.SetDefault("data.path", constants.DefaultDataFile)
	v.SetDefault("data.driveFileId", "")
	v.SetDefault("auth.mode", AuthPassword)
	v.SetDefault("auth.usersFile", constants.DefaultUsersFile)
	v.SetDefault("auth.sessionTTL", constants.DefaultSessionTTLSeconds)
	v.SetDefault("auth.google.clientId", "")
	v.SetDefault("auth.google.clientSecret", "")
	v.SetDefault("auth.google.redirectURL", "http://localhost:8080/auth/google/callback")
	v.SetDefault("export.redactColumns", []string{constants.ColumnDBYTD, constants.ColumnMarginYTD})
	v.SetDefault("export.watermark", true)
	v.SetDefault("export.auditDB", "")
	v.SetDefault("chat.model", "")
	v.SetDefault("chat.apiKey", "")
	v.SetDefault("chat.endpoint", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path yields the defaults. Every key can be
// overridden from the environment with the MD_ prefix, e.g. MD_DATA_SOURCE.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("auth.google.clientSecret", "MD_OAUTH_CLIENT_SECRET"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("auth.google.clientId", "MD_OAUTH_CLIENT_ID"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("chat.apiKey", "MD_CHAT_APIKEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	profiles := DefaultProfiles()
	for name, p := range configuration.Profiles {
		profiles[name] = p
	}
	configuration.Profiles = profiles

	return &configuration, nil
}

// Profile returns the active environment profile. Unknown environments use
// the production profile.
func (c *Configuration) Profile() Profile {
	if p, ok := c.Profiles[c.Environment]; ok {
		return p
	}
	if p, ok := c.Profiles[constants.EnvironmentProduction]; ok {
		return p
	}
	return DefaultProfiles()[constants.EnvironmentProduction]
}

// CacheTTL returns the load cache lifetime of the active profile.
func (c *Configuration) CacheTTL() time.Duration {
	ttl := c.Profile().CacheTTL
	if ttl <= 0 {
		ttl = DefaultProfiles()[constants.EnvironmentProduction].CacheTTL
	}
	return time.Duration(ttl) * time.Second
}

// SessionTTL returns the login session lifetime.
func (c *Configuration) SessionTTL() time.Duration {
	if c.Auth.SessionTTL <= 0 {
		return constants.DefaultSessionTTLSeconds * time.Second
	}
	return time.Duration(c.Auth.SessionTTL) * time.Second
}

// Validate rejects settings the application cannot run with.
func (c *Configuration) Validate() error {
	switch c.Data.Source {
	case SourceFile, SourceDrive, SourceUpload:
	default:
		return fmt.Errorf("expected data source of %s, %s or %s, got %s", SourceFile, SourceDrive, SourceUpload, c.Data.Source)
	}
	switch c.Auth.Mode {
	case AuthNone, AuthPassword, AuthGoogle:
	default:
		return fmt.Errorf("expected auth mode of %s, %s or %s, got %s", AuthNone, AuthPassword, AuthGoogle, c.Auth.Mode)
	}
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("expected logging format of json or console, got %s", c.Logging.Format)
	}
	return validation.ValidateOutputFormat(c.Output.Format)
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if _, ok := c.Profiles[c.Environment]; !ok {
		warnings = append(warnings, fmt.Sprintf("Unknown environment '%s' - using production profile", c.Environment))
	}
	if c.Data.Source == SourceDrive {
		if c.Auth.Mode != AuthGoogle {
			warnings = append(warnings, "Drive data source requires google login - users without a Drive token fall back to the local file")
		}
		if c.Data.DriveFileID == "" {
			warnings = append(warnings, "Drive data source configured without driveFileId")
		}
	}
	if c.Auth.Mode == AuthGoogle && (c.Auth.Google.ClientID == "" || c.Auth.Google.ClientSecret == "") {
		warnings = append(warnings, "Google login enabled without client id or secret")
	}
	if c.Auth.Mode == AuthNone && c.Environment == constants.EnvironmentProduction {
		warnings = append(warnings, "Authentication disabled in production - every visitor sees all branches")
	}
	if c.Chat.APIKey == "" {
		warnings = append(warnings, "No chat API key configured - chat assistant disabled")
	}
	return warnings
}
