package rankdesk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rankdesk/rankdesk/db"
	"github.com/rankdesk/rankdesk/domain"
	"go.uber.org/zap"
)

// WithOptions applies a series of configuration functions to the console.
func (console *Console) WithOptions(options ...func(*Console) error) error {
	for _, option := range options {
		if err := option(console); err != nil {
			return fmt.Errorf("applying option on rankdesk : %w", err)
		}
	}
	return nil
}

// WithConfigDir loads config.yaml from appConfigDir, creating both on first run.
func WithConfigDir(appConfigDir string) func(*Console) error {
	return func(console *Console) error {
		cfg, err := LoadConfig(appConfigDir)
		if err != nil {
			return err
		}
		console.Config = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *Config) func(*Console) error {
	return func(console *Console) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		console.Config = cfg
		return nil
	}
}

// WithBaseURL overrides the API base URL of the loaded configuration.
func WithBaseURL(baseURL string) func(*Console) error {
	return func(console *Console) error {
		if console.Config == nil {
			return errors.New("base URL needs a config, apply WithConfigDir first")
		}
		console.Config.APIURL = baseURL
		return nil
	}
}

// WithLogger sets the logger. A nil logger falls back to a no-op logger.
func WithLogger(logger *zap.Logger) func(*Console) error {
	return func(console *Console) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		console.Logger = logger
		return nil
	}
}

// WithRepo uses repo for storage and notification history instead of opening the
// configured database file. The caller keeps ownership of repo.
func WithRepo(repo *db.Repository) func(*Console) error {
	return func(console *Console) error {
		if repo == nil {
			return errors.New("repository is nil")
		}
		console.Repo = repo
		return nil
	}
}

// WithHTTPClient replaces the API client built from the configuration.
func WithHTTPClient(client *http.Client) func(*Console) error {
	return func(console *Console) error {
		if client == nil {
			return errors.New("http client is nil")
		}
		console.HTTPClient = client
		return nil
	}
}

// WithDisplay registers a function that shows each notification to the user.
func WithDisplay(display func(domain.Notification)) func(*Console) error {
	return func(console *Console) error {
		console.display = display
		return nil
	}
}
