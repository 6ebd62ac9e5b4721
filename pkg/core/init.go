package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/blackcoderx/apix/pkg/client"
	"github.com/blackcoderx/apix/pkg/history"
)

// FolderName is the per-project directory holding config, session and history.
const FolderName = ".apix"

// Config keys read through viper.
const (
	KeyAPIURL     = "api_url"
	KeyProxyURL   = "proxy_url"
	KeyWorkspace  = "workspace"
	KeyHistoryMax = "history.max_entries"
	KeyHistoryTTL = "history.ttl"
	KeyRateLimit  = "proxy.rate_limit"
	KeyLogLevel   = "log.level"
	KeyLogFormat  = "log.format"
)

// DefaultWorkspace is used when no workspace is configured.
const DefaultWorkspace = "default"

// Config is the user's apix configuration as written to config.json.
type Config struct {
	APIURL    string        `json:"api_url"`
	ProxyURL  string        `json:"proxy_url,omitempty"`
	Workspace string        `json:"workspace"`
	History   HistoryConfig `json:"history"`
	Proxy     ProxyConfig   `json:"proxy"`
	Log       LogConfig     `json:"log"`
}

// HistoryConfig bounds the local history cache.
type HistoryConfig struct {
	MaxEntries int    `json:"max_entries"`
	TTL        string `json:"ttl"`
}

// ProxyConfig throttles requests sent through the proxy.
type ProxyConfig struct {
	RateLimit float64 `json:"rate_limit"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		APIURL:    client.DefaultBaseURL,
		Workspace: DefaultWorkspace,
		History: HistoryConfig{
			MaxEntries: history.DefaultMaxEntries,
			TTL:        history.DefaultTTL.String(),
		},
		Proxy: ProxyConfig{RateLimit: 0},
		Log:   LogConfig{Level: "warn", Format: "console"},
	}
}

// SetDefaults registers the default of every key on v, so values missing
// from an older config.json still resolve.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault(KeyAPIURL, d.APIURL)
	v.SetDefault(KeyProxyURL, "")
	v.SetDefault(KeyWorkspace, d.Workspace)
	v.SetDefault(KeyHistoryMax, d.History.MaxEntries)
	v.SetDefault(KeyHistoryTTL, d.History.TTL)
	v.SetDefault(KeyRateLimit, d.Proxy.RateLimit)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
}

// Settings is the resolved configuration used to wire the application.
type Settings struct {
	APIURL     string
	ProxyURL   string
	Workspace  string
	HistoryMax int
	HistoryTTL time.Duration
	RateLimit  float64
	LogLevel   string
	LogFormat  string
}

// Load resolves Settings from v. The proxy defaults to the API URL.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		APIURL:     v.GetString(KeyAPIURL),
		ProxyURL:   v.GetString(KeyProxyURL),
		Workspace:  v.GetString(KeyWorkspace),
		HistoryMax: v.GetInt(KeyHistoryMax),
		RateLimit:  v.GetFloat64(KeyRateLimit),
		LogLevel:   v.GetString(KeyLogLevel),
		LogFormat:  v.GetString(KeyLogFormat),
	}
	ttl, err := time.ParseDuration(v.GetString(KeyHistoryTTL))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid %s: %w", KeyHistoryTTL, err)
	}
	s.HistoryTTL = ttl
	if s.ProxyURL == "" {
		s.ProxyURL = s.APIURL
	}
	if s.Workspace == "" {
		s.Workspace = DefaultWorkspace
	}
	return s, nil
}

// InitializeFolder creates the apix folder under baseDir with a default
// config.json and the workspaces directory. Existing files are kept. Progress
// is reported to out.
func InitializeFolder(baseDir string, out io.Writer) error {
	dir := filepath.Join(baseDir, FolderName)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "Initializing .apix folder for the first time...")

		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create .apix folder: %w", err)
		}
		if err := writeDefaultConfig(filepath.Join(dir, "config.json")); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ .apix folder initialized")
	}

	// folders added by later versions
	return ensureDir(filepath.Join(dir, "workspaces"))
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}

func writeDefaultConfig(path string) error {
	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// HistoryPath returns the history database inside the apix folder dir.
func HistoryPath(dir string) string {
	return filepath.Join(dir, "history.db")
}

// Dir returns the apix folder under baseDir.
func Dir(baseDir string) string {
	return filepath.Join(baseDir, FolderName)
}
