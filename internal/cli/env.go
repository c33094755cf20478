package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/dirsync/internal/activity"
	"github.com/roach88/dirsync/internal/config"
	"github.com/roach88/dirsync/internal/lock"
	"github.com/roach88/dirsync/internal/metrics"
	"github.com/roach88/dirsync/internal/store"
)

// env is what a command that touches the database needs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	log     *activity.Log
	metrics *metrics.Metrics
	redis   *redis.Client
}

// openEnv loads the configuration, opens the store and assembles the
// activity log. database, when set, overrides the configured location.
func openEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command, database string) (*env, error) {
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}
	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid database driver", err)
	}
	if database != "" {
		if dialect == store.DialectPostgres {
			cfg.DBDSN = database
		} else {
			cfg.DBPath = database
		}
	}

	logger := config.SetupLogger(cfg, cmd.ErrOrStderr())
	logger.Debug("opening database", "driver", dialect)
	st, err := store.Open(ctx, dialect, cfg.DSN())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	e := &env{cfg: cfg, logger: logger, store: st, metrics: metrics.New()}

	var locker lock.Locker = lock.Nop{}
	if cfg.RedisAddr != "" {
		e.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		locker = lock.NewRedis(e.redis, cfg.RedisPrefix)
		logger.Debug("using redis append lock", "addr", cfg.RedisAddr)
	}

	e.log = activity.New(st,
		activity.WithSettings(cfg),
		activity.WithLogger(config.AuditLogger(logger)),
		activity.WithLocker(locker),
		activity.WithMetrics(e.metrics),
		activity.WithRetries(cfg.AppendRetries),
	)
	return e, nil
}

// actor returns the author recorded for changes made by this command.
func (e *env) actor(flag string) string {
	switch {
	case flag != "":
		return flag
	case e.cfg.Actor != "":
		return e.cfg.Actor
	}
	return activity.ActorCLI
}

// Close writes the metrics textfile, if configured, and releases
// connections.
func (e *env) Close() error {
	var errs []error
	if e.cfg.MetricsFile != "" {
		errs = append(errs, e.metrics.WriteTextfile(e.cfg.MetricsFile))
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}
