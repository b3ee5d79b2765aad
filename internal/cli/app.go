package cli

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/vmhop/internal/config"
	"github.com/rileyhilliard/vmhop/internal/conn"
	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/rileyhilliard/vmhop/internal/profile"
	"github.com/rileyhilliard/vmhop/internal/remote"
	"github.com/rileyhilliard/vmhop/internal/secret"
	"github.com/rileyhilliard/vmhop/internal/ui"
)

// App is what a command works with: the loaded config, the secret store
// (for listing which profiles have a password) and the orchestrator.
type App struct {
	Config  *config.Config
	Orch    *conn.Orchestrator
	Secrets secret.Store
	Log     logger.Logger

	closers []func() error
}

// openAppFunc builds the App for a command. Tests replace it.
var openAppFunc = openApp

// openApp loads and validates the config, then wires the stores, the SSH
// executor and the orchestrator from it.
func openApp(ctx context.Context) (*App, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if !noColor {
		ui.SetColorMode(cfg.Output.Color, rootCmd.OutOrStdout())
	}
	return newApp(ctx, cfg, newLogger("vmhop"))
}

// newApp wires an App from a validated config.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	var closers []func() error

	profiles, err := openProfileStore(ctx, cfg.Profiles, log)
	if err != nil {
		return nil, err
	}
	if c, ok := profiles.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	secrets, err := openSecretStore(cfg.Secrets, log)
	if err != nil {
		closeAll(closers)
		return nil, err
	}

	executor := remote.NewSSHExecutor(remote.NewRegistry(cfg.Operations), remote.SSHOptions{
		Port:                  cfg.SSH.Port,
		StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		KnownHostsPath:        cfg.SSH.KnownHosts,
		SSHConfigPath:         cfg.SSH.ConfigFile,
	}, log)

	app, err := assembleApp(ctx, cfg, profiles, secrets, executor, log)
	if err != nil {
		_ = executor.Close()
		closeAll(closers)
		return nil, err
	}
	app.closers = append(app.closers, closers...)
	return app, nil
}

// assembleApp builds the orchestrator over already opened stores and loads
// the profile list.
func assembleApp(ctx context.Context, cfg *config.Config, profiles profile.Store, secrets secret.Store, executor remote.Executor, log logger.Logger) (*App, error) {
	orch, err := conn.New(conn.Options{
		Profiles:          profiles,
		Secrets:           secrets,
		Executor:          executor,
		Retry:             conn.RetryPolicy{MaxDelay: cfg.Connection.MaxRetryDelay},
		TestTimeout:       cfg.Connection.TestTimeout,
		DisconnectTimeout: cfg.Connection.DisconnectTimeout,
		Logger:            log,
	})
	if err != nil {
		return nil, err
	}
	if err := orch.LoadProfiles(ctx); err != nil {
		_ = orch.Close()
		return nil, err
	}
	return &App{Config: cfg, Orch: orch, Secrets: secrets, Log: log}, nil
}

// RetryOptions turns the connection config into retry options.
func (a *App) RetryOptions() conn.RetryOptions {
	return conn.RetryOptions{
		MaxRetries:     a.Config.Connection.MaxRetries,
		InitialDelay:   a.Config.Connection.InitialRetryDelay,
		AttemptTimeout: a.Config.Connection.RetryAttemptTimeout,
	}
}

// Close shuts the orchestrator (and its executor) down, then the stores.
func (a *App) Close() error {
	err := a.Orch.Close()
	if cerr := closeAll(a.closers); err == nil {
		err = cerr
	}
	return err
}

func closeAll(closers []func() error) error {
	var first error
	for _, c := range closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openProfileStore(ctx context.Context, cfg config.ProfilesConfig, log logger.Logger) (profile.Store, error) {
	switch cfg.Backend {
	case config.ProfilesSQLite:
		return profile.OpenSQLiteStore(ctx, cfg.Path, log)
	case config.ProfilesYAML, "":
		return profile.NewYAMLStore(cfg.Path, log), nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown profile backend '%s'", cfg.Backend),
			"Set profiles.backend to 'yaml' or 'sqlite'.")
	}
}

func openSecretStore(cfg config.SecretsConfig, log logger.Logger) (secret.Store, error) {
	switch cfg.Backend {
	case config.SecretsKeyring:
		return secret.NewKeyringStore(cfg.Service, log), nil
	case config.SecretsFile:
		return secret.NewFileStore(cfg.File, cfg.KeyFile, log), nil
	case config.SecretsAuto, "":
		return secret.NewFallback(
			secret.NewKeyringStore(cfg.Service, log),
			secret.NewFileStore(cfg.File, cfg.KeyFile, log),
			log,
		), nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown secrets backend '%s'", cfg.Backend),
			"Set secrets.backend to 'keyring', 'file', or 'auto'.")
	}
}
