package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hydrate/internal/config"
	"github.com/roach88/hydrate/internal/dataset"
	"github.com/roach88/hydrate/internal/match"
	"github.com/roach88/hydrate/internal/review"
	"github.com/roach88/hydrate/internal/store"
	"github.com/roach88/hydrate/internal/validate"
)

// app is the wired set of services one command runs against.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	engine    *match.Engine
	resolver  *match.Resolver
	scanner   *review.Scanner
	workflow  *review.Workflow
	validator *validate.Validator
	importer  *dataset.Importer
}

// newLogger returns the text logger commands log through. Debug output is
// enabled by --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// loadConfig reads settings and applies the --db override.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	return cfg, nil
}

// openApp loads settings, opens the database and builds every service.
// The caller must Close the returned app.
func openApp(opts *RootOptions, logw io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	reviewCfg, err := cfg.ReviewConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid review settings", err)
	}

	logger := newLogger(logw, opts.Verbose)

	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	v, err := validate.New(cfg.ValidateConfig())
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid validation settings", err)
	}
	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		engine:    match.NewEngine(st, cfg.MatchConfig(), logger),
		resolver:  match.NewResolver(st, cfg.MatchConfig(), logger),
		scanner:   review.NewScanner(st, reviewCfg, logger),
		workflow:  review.NewWorkflow(st, reviewCfg, review.WithLogger(logger)),
		validator: v,
		importer:  dataset.NewImporter(st, v, logger),
	}
	return a, nil
}

// Close releases the database.
func (a *app) Close() error {
	return a.store.Close()
}

// runWithApp opens the app, runs fn and closes the app. Errors returned by
// fn that are not already ExitErrors are reported through the formatter.
func runWithApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app, out *OutputFormatter) error) error {
	out := newFormatter(opts, cmd)

	a, err := openApp(opts, cmd.ErrOrStderr())
	if err != nil {
		_ = out.Error(ErrCodeSetup, err.Error(), nil)
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := fn(ctx, a, out); err != nil {
		if _, ok := err.(*ExitError); ok {
			return err
		}
		return out.Fail(err)
	}
	return nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
