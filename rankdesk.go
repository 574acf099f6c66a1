// Package rankdesk is the data layer of the phone processor rankings console.
//
// A Console wires the configuration, the local SQLite store, the session and the API
// transport together and hands out collection synchronizers that mirror the remote
// rankings collection in memory:
//
//	console, err := rankdesk.New(rankdesk.WithConfigDir(dir))
//	processors, err := console.Processors()
//	err = processors.Mount(ctx)
//	snapshot := processors.Snapshot()
//
// Every synchronizer failure and mutation result is raised as a notification, persisted
// in the notification history and shown through the display registered with WithDisplay.
package rankdesk

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/rankdesk/rankdesk/collection"
	"github.com/rankdesk/rankdesk/core"
	"github.com/rankdesk/rankdesk/db"
	"github.com/rankdesk/rankdesk/domain"
	"github.com/rankdesk/rankdesk/rest"
	"github.com/rankdesk/rankdesk/server"
	"github.com/rankdesk/rankdesk/session"
	"go.uber.org/zap"
)

var _ collection.Endpoint = (*rest.Client)(nil)
var _ collection.Notifier = (*Notifier)(nil)

// Console is the entry point for the rankings data layer.
type Console struct {
	Config     *Config
	Repo       *db.Repository
	Logger     *zap.Logger
	Session    *session.LocalProvider
	Notifier   *Notifier
	HTTPClient *http.Client // API client carrying the session token

	display  func(domain.Notification)
	ownsRepo bool
}

// New creates a Console. Without WithConfigDir or WithConfig the configuration is loaded
// from the user config directory; without WithRepo the configured database file is opened.
func New(options ...func(*Console) error) (*Console, error) {
	console := &Console{}
	if err := console.WithOptions(options...); err != nil {
		return nil, err
	}

	if console.Logger == nil {
		console.Logger = zap.NewNop()
	}
	if console.Config == nil {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		if console.Config, err = LoadConfig(dir); err != nil {
			return nil, err
		}
	}
	if console.Repo == nil {
		repo, err := db.Open(console.Config.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("opening database : %w", err)
		}
		console.Repo = repo
		console.ownsRepo = true
	}

	provider, err := session.NewLocalProvider(console.Repo)
	if err != nil {
		console.Close()
		return nil, fmt.Errorf("creating session provider : %w", err)
	}
	console.Session = provider
	console.Notifier = NewNotifier(console.Repo, console.Logger.Named("notifications"), console.display)

	if console.HTTPClient == nil {
		console.HTTPClient = &http.Client{
			Transport: newTransport(provider, console.Logger.Named("http"), console.Config.TraceHTTP, console.Config.InsecureSkipVerify),
			Timeout:   console.Config.RequestTimeout,
		}
	}
	return console, nil
}

// Close releases the database when the console opened it.
func (console *Console) Close() error {
	if console.ownsRepo && console.Repo != nil {
		return console.Repo.Close()
	}
	return nil
}

// Processors returns a synchronizer for the processor rankings collection. The caller
// owns it and must Close it when done.
func (console *Console) Processors() (*collection.Synchronizer[domain.Processor], error) {
	client, err := rest.New(console.Config.APIURL, console.Config.CollectionPath,
		rest.WithHTTPClient(console.HTTPClient),
		rest.WithBatchCreate(console.Config.BatchCreate),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rankings client : %w", err)
	}

	return collection.NewProcessors(client,
		collection.WithNotifier[domain.Processor](console.Notifier),
		collection.WithLogger[domain.Processor](console.Logger.Named("processors")),
	)
}

// Login exchanges the credentials for a session token and stores it.
func (console *Console) Login(ctx context.Context, username, password string) error {
	ctx = NewRequestContext(ctx)
	token, err := rest.Login(ctx, console.Config.APIURL, rest.Credentials{Username: username, Password: password},
		rest.WithHTTPClient(console.HTTPClient),
	)
	if err != nil {
		console.Notifier.Raise(ctx, domain.LevelError, "Error", "Failed to log in",
			core.NotificationWithContext(map[string]any{"operation": "login", "cause": err.Error()}))
		return err
	}
	if err := console.Session.Save(token); err != nil {
		return fmt.Errorf("saving session : %w", err)
	}
	console.Notifier.Raise(ctx, domain.LevelSuccess, "Success", "Logged in successfully",
		core.NotificationWithContext(map[string]any{"operation": "login", "username": username}))
	return nil
}

// Logout forgets the stored session token.
func (console *Console) Logout() error {
	if err := console.Session.Clear(); err != nil {
		return fmt.Errorf("clearing session : %w", err)
	}
	return nil
}

// Guard returns the route guard for the console navigation.
func (console *Console) Guard() *session.Guard {
	return session.NewGuard(console.Session, session.Routes)
}

// Notifications returns the notification history, oldest first.
func (console *Console) Notifications() ([]*domain.Notification, error) {
	notifications, err := console.Repo.GetNotifications()
	if err != nil {
		return nil, fmt.Errorf("getting notifications : %w", err)
	}
	return notifications, nil
}

// Server builds the reference rankings API over the console database. Token auth is
// enabled when an admin password hash is configured; a signing key is generated and
// saved on first use.
func (console *Console) Server() (*server.Server, error) {
	options := []func(*server.Server) error{server.WithLogger(console.Logger.Named("server"))}

	if console.Config.AdminPasswordHash != "" {
		secret, err := console.Config.EnsureJWTSecret()
		if err != nil {
			return nil, err
		}
		auth, err := server.NewAuth(secret, console.Config.AdminUser, console.Config.AdminPasswordHash, console.Config.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("configuring auth : %w", err)
		}
		options = append(options, server.WithAuth(auth))
	}
	return server.New(console.Repo, options...)
}

// ServerTLSConfig loads the configured certificate pair, or returns nil when none is set.
func (console *Console) ServerTLSConfig() (*tls.Config, error) {
	cfg := console.Config
	if cfg.TLSCertFile == "" && cfg.TLSKeyFile == "" {
		return nil, nil
	}
	if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
		return nil, errors.New("tls_cert_file and tls_key_file must be set together")
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading tls key pair : %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}
