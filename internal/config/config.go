package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in <root>/data and then <root>.
const FileName = "config.json"

// Config is the root configuration for twr.
// The file supports single-line // comments for documentation purposes.
type Config struct {
	// DataDir holds the report file. Relative paths are resolved against the
	// application root.
	DataDir string `mapstructure:"data_dir"`
	// DataFile is the report file name inside DataDir.
	DataFile string        `mapstructure:"data_file"`
	Outlook  OutlookConfig `mapstructure:"outlook"`
}

// OutlookConfig holds Microsoft Graph / Outlook calendar import settings.
type OutlookConfig struct {
	// TenantID is the Azure AD tenant. Use "common" for personal/multi-tenant accounts.
	TenantID string `mapstructure:"tenant_id"`
	// ClientID is the Azure app (client) ID for the OAuth2 device code flow.
	ClientID string `mapstructure:"client_id"`
	// DefaultCategory is the category assigned to imported events.
	DefaultCategory string `mapstructure:"default_category"`
	// DefaultOwner is the namespace imported events are stored in.
	DefaultOwner string `mapstructure:"default_owner"`
	// Timezone is the IANA timezone for event times (e.g. "Europe/Berlin"). Empty = UTC.
	Timezone string `mapstructure:"timezone"`
}

const (
	DefaultDataDir  = "data"
	DefaultDataFile = "reports.json"
	// DefaultTenantID is the Microsoft "common" tenant.
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID. It supports
	// device code flow without a client secret or app registration.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
	DefaultCategory = "Meetings"
	DefaultOwner    = "shared"
)

const (
	envPrefix     = "TWR"
	configSubdir  = "data"
	tokenDirName  = "auth"
	tokenFileName = "msgraph_tokens.json"
)

// configTemplate is the annotated config written by WriteDefault.
// Lines whose trimmed content starts with // are stripped before JSON parsing.
const configTemplate = `// twr configuration
//
// Looked up in <root>/data/config.json first, then <root>/config.json.
// All settings are optional. Every key can also be set through the
// environment, e.g. TWR_DATA_DIR or TWR_OUTLOOK_TIMEZONE.
{
  // Directory holding the report file, relative to the application root.
  "data_dir": "data",

  // Report file name inside data_dir.
  "data_file": "reports.json",

  // ── Microsoft Graph / Outlook calendar import ────────────────────────────
  "outlook": {
    // Azure AD tenant ID: "common" or your organisation's tenant GUID.
    "tenant_id": "common",

    // Azure application (client) ID used for the OAuth2 device code flow.
    // The built-in value is the public Azure CLI app.
    "client_id": "04b07795-8542-4c4a-95af-30b2c573d5ab",

    // Category assigned to imported events.
    "default_category": "Meetings",

    // Namespace for imported events: "personal" or "shared".
    "default_owner": "shared",

    // IANA timezone for event times, e.g. "Europe/Berlin". Empty = UTC.
    "timezone": ""
  }
}
`

// newViper returns a viper instance carrying the built-in defaults and
// TWR_* environment overrides.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("data_file", DefaultDataFile)
	v.SetDefault("outlook.tenant_id", DefaultTenantID)
	v.SetDefault("outlook.client_id", DefaultClientID)
	v.SetDefault("outlook.default_category", DefaultCategory)
	v.SetDefault("outlook.default_owner", DefaultOwner)
	v.SetDefault("outlook.timezone", "")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Find returns the first existing config file below root, or "" if there is none.
func Find(root string) (string, error) {
	for _, dir := range []string{filepath.Join(root, configSubdir), root} {
		path := filepath.Join(dir, FileName)
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("checking config file %s: %w", path, err)
		}
		if !info.IsDir() {
			return path, nil
		}
	}
	return "", nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads the config for the application rooted at root. It returns the
// config and the file it was read from ("" when none exists, in which case
// defaults and environment overrides apply). On error the defaults are
// returned alongside it.
func Load(root string) (Config, string, error) {
	v := newViper()

	path, err := Find(root)
	if err != nil {
		return defaults(v), "", err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return defaults(v), path, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := v.ReadConfig(bytes.NewReader(stripLineComments(data))); err != nil {
			return defaults(newViper()), path, fmt.Errorf("parsing config file %s: %w\nTip: run 'twr config init' to regenerate defaults", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return defaults(newViper()), path, fmt.Errorf("decoding config file %s: %w", path, err)
	}

	// Blank values in the file fall back to the built-in defaults.
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.DataFile == "" {
		cfg.DataFile = DefaultDataFile
	}
	if cfg.Outlook.TenantID == "" {
		cfg.Outlook.TenantID = DefaultTenantID
	}
	if cfg.Outlook.ClientID == "" {
		cfg.Outlook.ClientID = DefaultClientID
	}
	if cfg.Outlook.DefaultCategory == "" {
		cfg.Outlook.DefaultCategory = DefaultCategory
	}
	if cfg.Outlook.DefaultOwner == "" {
		cfg.Outlook.DefaultOwner = DefaultOwner
	}
	return cfg, path, nil
}

func defaults(v *viper.Viper) Config {
	return Config{
		DataDir:  v.GetString("data_dir"),
		DataFile: v.GetString("data_file"),
		Outlook: OutlookConfig{
			TenantID:        v.GetString("outlook.tenant_id"),
			ClientID:        v.GetString("outlook.client_id"),
			DefaultCategory: v.GetString("outlook.default_category"),
			DefaultOwner:    v.GetString("outlook.default_owner"),
			Timezone:        v.GetString("outlook.timezone"),
		},
	}
}

// DataDirPath resolves DataDir against root.
func (c Config) DataDirPath(root string) string {
	if filepath.IsAbs(c.DataDir) {
		return c.DataDir
	}
	return filepath.Join(root, c.DataDir)
}

// DataFilePath returns the report file location for the application at root.
func (c Config) DataFilePath(root string) string {
	return filepath.Join(c.DataDirPath(root), c.DataFile)
}

// TokenFilePath returns where the Microsoft Graph token is cached.
func (c Config) TokenFilePath(root string) string {
	return filepath.Join(c.DataDirPath(root), tokenDirName, tokenFileName)
}

// DefaultPath is where `config init` writes a new config file for root.
func DefaultPath(root string) string {
	return filepath.Join(root, configSubdir, FileName)
}

// WriteDefault creates the config directory and writes the annotated default
// config template. An existing file is never overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
