package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"aishi/internal/chain"
	"aishi/internal/config"
	"aishi/internal/events"
	"aishi/internal/logging"
	"aishi/internal/metrics"
	"aishi/internal/store"
	"aishi/internal/timeauth"
	"aishi/internal/token"
)

const runtimeKey = "runtime"

// runtime holds everything built from configuration for one invocation.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *token.Registry
	recorder *events.Recorder
	promReg  *prometheus.Registry
	closers  []io.Closer
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.registry != nil {
		errs = append(errs, rt.registry.Close())
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i].Close())
	}
	_ = rt.logger.Sync()
	return errors.Join(errs...)
}

// flagOverrides maps global flags to config keys.
var flagOverrides = map[string]string{
	"data-dir":  "data_dir",
	"store":     "store.backend",
	"authority": "authority.name",
	"log-level": "log.level",
}

func loadConfig(c *cli.Context, extra ...config.Option) (*config.Config, error) {
	opts := []config.Option{config.WithConfigFile(c.String("config"))}
	for flag, key := range flagOverrides {
		if c.IsSet(flag) {
			opts = append(opts, config.WithOverride(key, c.String(flag)))
		}
	}
	opts = append(opts, extra...)

	return config.NewLoader(opts...).Load()
}

// openRuntime builds the registry and its dependencies, once per invocation.
func openRuntime(c *cli.Context, extra ...config.Option) (*runtime, error) {
	if rt, ok := c.App.Metadata[runtimeKey].(*runtime); ok {
		return rt, nil
	}

	cfg, err := loadConfig(c, extra...)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		recorder: events.NewRecorder(),
		promReg:  prometheus.NewRegistry(),
		closers:  []io.Closer{logCloser},
	}

	if err := rt.open(c.Context); err != nil {
		_ = rt.Close()
		return nil, err
	}

	c.App.Metadata[runtimeKey] = rt
	return rt, nil
}

func (rt *runtime) open(ctx context.Context) error {
	authority, err := timeauth.NewAuthority(rt.cfg.Authority)
	if err != nil {
		return err
	}

	st, err := store.Open(rt.cfg.Store, rt.logger.Named("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	// The recorder keeps this invocation's committed events for --json output
	sinks := events.Multi{rt.recorder}
	if path := rt.cfg.Events.AuditLog; path != "" {
		audit := events.NewAuditSink(path, rt.cfg.Log)
		sinks = append(sinks, audit)
		rt.closers = append(rt.closers, audit)
	}
	if k := rt.cfg.Events.Kafka; len(k.Brokers) > 0 {
		kafka := events.NewKafkaSink(k.Brokers, k.Topic)
		sinks = append(sinks, kafka)
		rt.closers = append(rt.closers, kafka)
	}

	admin, err := rt.cfg.AdminAddress()
	if err != nil {
		_ = st.Close()
		return err
	}

	rt.registry, err = token.Open(ctx, authority, admin,
		token.WithStore(st),
		token.WithSink(sinks),
		token.WithMetrics(metrics.NewTokenMetrics(rt.promReg)),
		token.WithLogger(rt.logger.Named("token")),
		token.WithBaseURI(rt.cfg.Token.BaseURI),
	)
	if err != nil {
		_ = st.Close()
		return err
	}
	return nil
}

func closeRuntime(c *cli.Context) error {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, runtimeKey)
	return rt.Close()
}

// caller parses the global --as flag. Required commands reject a missing caller.
func caller(c *cli.Context, required bool) (chain.Address, error) {
	s := c.String("as")
	if s == "" {
		if required {
			return chain.ZeroAddress, errors.New("--as is required for this command")
		}
		return chain.ZeroAddress, nil
	}
	addr, err := chain.ParseAddress(s)
	if err != nil {
		return chain.ZeroAddress, fmt.Errorf("--as: %w", err)
	}
	return addr, nil
}
