package rankdesk

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config" // Config file name, without extension
	configType = "yaml"

	// DefaultCollectionPath is the rankings collection below the API base URL.
	DefaultCollectionPath = "phone/processor_rankings"
)

// Config is the rankdesk configuration. Every key can be overridden with a
// RANKDESK_ prefixed environment variable, e.g. RANKDESK_API_URL.
type Config struct {
	viper              *viper.Viper
	ConfigDir          string        `mapstructure:"config_dir"`           // Directory holding config.yaml and the database
	APIURL             string        `mapstructure:"api_url"`              // API base URL, read once at load
	CollectionPath     string        `mapstructure:"collection_path"`      // Collection path below APIURL
	BatchCreate        bool          `mapstructure:"batch_create"`         // Send created records as a single element batch
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`      // 0 waits on the transport defaults
	TraceHTTP          bool          `mapstructure:"trace_http"`           // Log raw request and response dumps
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"` // Skip API certificate verification
	DatabaseName       string        `mapstructure:"database_name"`        // SQLite file name inside ConfigDir
	LogLevel           string        `mapstructure:"log_level"`
	ListenAddress      string        `mapstructure:"listen_address"` // Reference server address
	JWTSecret          string        `mapstructure:"jwt_secret"`     // Reference server signing key
	AdminUser          string        `mapstructure:"admin_user"`
	AdminPasswordHash  string        `mapstructure:"admin_password_hash"` // bcrypt hash
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
	TLSCertFile        string        `mapstructure:"tls_cert_file"` // Optional, serves TLS next to plain HTTP
	TLSKeyFile         string        `mapstructure:"tls_key_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://127.0.0.1:8080/api")
	v.SetDefault("collection_path", DefaultCollectionPath)
	v.SetDefault("batch_create", false)
	v.SetDefault("request_timeout", "0s")
	v.SetDefault("trace_http", false)
	v.SetDefault("insecure_skip_verify", false)
	v.SetDefault("database_name", "rankdesk.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_address", "127.0.0.1:8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_password_hash", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")
}

// LoadConfig reads config.yaml from configDir, creating the directory and a default file
// on first run, and applies environment overrides.
func LoadConfig(configDir string) (*Config, error) {
	_, err := os.ReadDir(configDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking if directory exists %s: %w", configDir, err)
		}
		if err := os.MkdirAll(configDir, 0700); err != nil {
			return nil, fmt.Errorf("creating config dir %s: %w", configDir, err)
		}
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("RANKDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file : %w", err)
		}
		if err := v.SafeWriteConfig(); err != nil {
			return nil, fmt.Errorf("writing config file : %w", err)
		}
	}

	cfg := &Config{viper: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	cfg.ConfigDir = configDir
	return cfg, nil
}

// DefaultConfigDir returns the rankdesk folder under the user configuration directory.
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting user config dir : %w", err)
	}
	return filepath.Join(dir, "rankdesk"), nil
}

// DatabasePath returns the absolute path of the SQLite database.
func (cfg *Config) DatabasePath() string {
	return filepath.Join(cfg.ConfigDir, cfg.DatabaseName)
}

// Set stores key in the config file and reloads the struct.
func (cfg *Config) Set(key string, value any) error {
	if cfg.viper == nil {
		return errors.New("config was not loaded from a directory")
	}
	if !cfg.viper.IsSet(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	cfg.viper.Set(key, value)
	if err := cfg.viper.WriteConfig(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	configDir := cfg.ConfigDir
	if err := cfg.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	cfg.ConfigDir = configDir
	return nil
}

// EnsureJWTSecret generates and persists a signing key if none is configured.
func (cfg *Config) EnsureJWTSecret() (string, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, nil
	}
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generating jwt secret : %w", err)
	}
	if err := cfg.Set("jwt_secret", hex.EncodeToString(randomBytes)); err != nil {
		return "", err
	}
	return cfg.JWTSecret, nil
}
