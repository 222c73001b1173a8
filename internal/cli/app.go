package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/config"
	"github.com/lwoollett/FrameHub/internal/docstore"
	"github.com/lwoollett/FrameHub/internal/session"
)

// environment is an open session plus everything needed to report on it.
type environment struct {
	cfg     *config.Config
	store   *docstore.Store
	session *session.Session
	logger  *slog.Logger
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// configPath resolves the configuration file location.
func (o *RootOptions) configPath() (string, error) {
	if o.ConfigPath != "" {
		return o.ConfigPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the configuration file and applies flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path, err := o.configPath()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to locate config", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if o.Database != "" {
		cfg.Store.Path = o.Database
	}
	if o.Catalog != "" {
		cfg.Catalog.Path = o.Catalog
	}
	if o.User != "" {
		cfg.Session.UserID = o.User
	}
	if o.Session != "" {
		cfg.Session.Kind = o.Session
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the slog logger described by the configuration.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openEnvironment loads the configuration, opens the store and opens a
// session on the configured document.
func (o *RootOptions) openEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	kind, err := session.ParseKind(cfg.Session.Kind)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid session", err)
	}
	debounce, err := cfg.GetDebounce()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid sync debounce", err)
	}
	refresh, err := cfg.GetRefreshInterval()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid catalog refresh interval", err)
	}

	logger.Debug("opening database", "path", cfg.Store.Path)
	st, err := docstore.Open(cfg.Store.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	ctx := commandContext(cmd)
	sess, err := session.Open(ctx, session.Options{
		Kind:            kind,
		UserID:          cfg.Session.UserID,
		Store:           st,
		Source:          catalog.NewFileSource(cfg.Catalog.Path),
		Debounce:        debounce,
		RefreshInterval: refresh,
		Scheduler:       o.Scheduler,
		Logger:          logger,
	})
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
		if errors.Is(err, catalog.ErrNoCatalog) {
			return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
		return nil, WrapExitError(ExitFailure, "failed to open session", err)
	}

	if kind == session.KindAnonymous && cfg.Session.UserID == "" {
		o.rememberAnonymousID(sess.Ref().ID, logger)
	}

	return &environment{cfg: cfg, store: st, session: sess, logger: logger}, nil
}

// rememberAnonymousID stores a generated anonymous id in the configuration
// file so later invocations reopen the same document. Flag overrides are not
// written back.
func (o *RootOptions) rememberAnonymousID(id string, logger *slog.Logger) {
	path, err := o.configPath()
	if err != nil {
		logger.Warn("anonymous id not saved", "error", err)
		return
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("anonymous id not saved", "error", err)
		return
	}
	cfg.Session.UserID = id
	if err := cfg.Save(path); err != nil {
		logger.Warn("anonymous id not saved", "error", err)
		return
	}
	logger.Info("anonymous session created", "id", id, "config", path)
}

// close flushes pending changes and closes the store.
func (e *environment) close(ctx context.Context) error {
	var errs []error
	if err := e.session.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("save progress: %w", err))
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
