package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/thinglink/internal/config"
	"github.com/roach88/thinglink/internal/graph"
	"github.com/roach88/thinglink/internal/identity"
	"github.com/roach88/thinglink/internal/integrity"
	"github.com/roach88/thinglink/internal/signal"
	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/store/kvstore"
)

// session is a graph opened from the configuration, with the substrate
// it must close.
type session struct {
	cfg        *config.Config
	agent      *identity.Agent
	keyCreated bool
	sub        store.Substrate
	graph      *graph.Graph
	logger     *slog.Logger
	out        *OutputFormatter
}

// openSession loads the configuration and agent key, opens the configured
// substrate and binds a graph to it. Signals are logged at info level.
func openSession(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*session, error) {
	out := newFormatter(cmd, opts)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, out.Fail(ExitCommandError, "failed to load config", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	agent, created, err := identity.LoadOrCreate(cfg.KeyFile)
	if err != nil {
		return nil, out.Fail(ExitCommandError, "failed to load agent key", err)
	}
	if created {
		logger.Info("generated agent key", "path", cfg.KeyFile, "agent", agent.Key())
	}

	rules := integrity.New(nil)
	if cfg.SchemaFile != "" {
		schema, err := integrity.LoadSchema(cfg.SchemaFile)
		if err != nil {
			return nil, out.Fail(ExitCommandError, "failed to load content schema", err)
		}
		rules = integrity.New(schema)
	}

	sub, err := openSubstrate(cfg, logger)
	if err != nil {
		return nil, out.Fail(ExitCommandError, "failed to open store", err)
	}

	g, err := graph.Open(ctx, sub, agent.Key(),
		graph.WithRules(rules),
		graph.WithSink(signal.LogSink{Logger: logger}),
		graph.WithLogger(logger),
	)
	if err != nil {
		sub.Close()
		return nil, out.Fail(ExitCommandError, "failed to open graph", err)
	}

	logger.Debug("session opened", "backend", cfg.Backend, "path", cfg.StorePath(), "agent", agent.Key())
	return &session{
		cfg:        cfg,
		agent:      agent,
		keyCreated: created,
		sub:        sub,
		graph:      g,
		logger:     logger,
		out:        out,
	}, nil
}

func (s *session) Close() error {
	return s.sub.Close()
}

// withSession runs fn on an opened session and closes it afterwards.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// openSubstrate opens the backend named by cfg.
func openSubstrate(cfg *config.Config, logger *slog.Logger) (store.Substrate, error) {
	switch cfg.Backend {
	case "badger":
		kv := kvstore.DefaultConfig(cfg.StorePath())
		kv.InMemory = cfg.Badger.InMemory
		kv.SyncWrites = cfg.Badger.SyncWrites
		kv.Logger = logger
		s, err := kvstore.Open(kv)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		s, err := store.Open(cfg.StorePath())
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// newLogger builds the stderr text logger: debug under --verbose,
// otherwise the configured level.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
