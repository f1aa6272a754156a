package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/linkage-api/internal/bootstrap"
	"github.com/noah-isme/linkage-api/internal/repository"
	"github.com/noah-isme/linkage-api/pkg/config"
	"github.com/noah-isme/linkage-api/pkg/logger"
)

type rootOptions struct {
	fixture string
	timeout time.Duration
	verbose bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "linkage",
		Short:         "Resolve identity links and audit dangling references",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.fixture, "fixture", "", "read identities from an Extended JSON fixture instead of the configured backend")
	flags.DurationVar(&opts.timeout, "timeout", 0, "abort the command after this long (0 disables)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log store activity to stderr")

	cmd.AddCommand(newResolveCmd(opts), newAuditCmd(opts), newTokenCmd())
	return cmd
}

// session is an open identity store plus the config and logger it was built from.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	store  repository.IdentityStore
	close  func()
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.fixture != "" {
		cfg.Store.Backend = config.BackendMemory
		cfg.Store.FixturePath = opts.fixture
	}
	cfg.Log.Format = "console"
	cfg.Log.Level = "warn"
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func (o *rootOptions) open(ctx context.Context) (*session, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := bootstrap.OpenIdentityStore(ctx, cfg, nil, logr)
	if err != nil {
		_ = logr.Sync()
		return nil, err
	}
	return &session{
		cfg:    cfg,
		logger: logr,
		store:  store,
		close: func() {
			closeStore()
			_ = logr.Sync()
		},
	}, nil
}

// withSession runs fn against an open store, honouring --timeout.
func (o *rootOptions) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	s, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
