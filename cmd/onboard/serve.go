package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-onboard/internal/metrics"
	"github.com/goliatone/go-onboard/internal/watch"
	"github.com/goliatone/go-onboard/pkg/schema"
	"github.com/goliatone/go-onboard/pkg/server"
	"github.com/goliatone/go-onboard/pkg/store"
	"github.com/goliatone/go-onboard/pkg/submission"
)

type serveOptions struct {
	addr          string
	redisAddr     string
	redisPassword string
	redisDB       int
	ttl           time.Duration
	lockTTL       time.Duration
	watch         bool
	metrics       bool
	outDir        string
	shutdown      time.Duration
	maxBody       int64
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wizard over HTTP",
		Long:  `Starts the HTTP API and html form endpoints. Sessions live in memory unless --redis is set.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", ":8080", "listen address")
	flags.StringVar(&opts.redisAddr, "redis", "", "redis address for sessions and locks")
	flags.StringVar(&opts.redisPassword, "redis-password", "", "redis password")
	flags.IntVar(&opts.redisDB, "redis-db", 0, "redis database")
	flags.DurationVar(&opts.ttl, "ttl", 24*time.Hour, "session lifetime, 0 keeps sessions forever")
	flags.DurationVar(&opts.lockTTL, "lock-ttl", 30*time.Second, "redis lock expiry")
	flags.BoolVar(&opts.watch, "watch", false, "reload the schema file when it changes")
	flags.BoolVar(&opts.metrics, "metrics", true, "expose prometheus metrics on /metrics")
	flags.StringVar(&opts.outDir, "out-dir", "", "write each submission envelope to this directory")
	flags.Int64Var(&opts.maxBody, "max-body", 32<<20, "largest accepted request body in bytes, uploads included")
	flags.DurationVar(&opts.shutdown, "shutdown-timeout", 5*time.Second, "graceful shutdown deadline")
	return cmd
}

func (a *app) serve(ctx context.Context, opts serveOptions) error {
	if opts.watch {
		src, err := schema.ParseSource(a.schema)
		if err != nil || src.Kind() != schema.SourceKindFile {
			return errors.New("--watch needs --schema pointing at a local file")
		}
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	sch, err := a.loadSchema(ctx, orch)
	if err != nil {
		return err
	}

	sessions, closeStore, err := a.sessions(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	sinks := []submission.Sink{submission.LogSink(a.logger)}
	if opts.outDir != "" {
		files, err := submission.NewFileSink(opts.outDir, submission.NewEncoder(submission.FormatEnvelope, submission.WithSchema(sch)))
		if err != nil {
			return err
		}
		sinks = append(sinks, files)
	}

	srvOpts := []server.Option{
		server.WithOrchestrator(orch),
		server.WithSessions(sessions),
		server.WithSink(submission.Multi(sinks...)),
		server.WithLogger(a.logger),
		server.WithMaxBodySize(opts.maxBody),
		server.WithMaxFormMemory(opts.maxBody),
	}
	if opts.metrics {
		srvOpts = append(srvOpts, server.WithMetrics(metrics.New()))
	}
	srv, err := server.New(sch, srvOpts...)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", opts.addr), zap.String("schema", sch.ID))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdown)
		defer cancel()
		a.logger.Info("shutting down")
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			_ = httpSrv.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	if opts.watch {
		w, err := watch.New(a.schema, func(ctx context.Context) error {
			next, err := a.loadSchema(ctx, orch)
			if err != nil {
				return err
			}
			return srv.SetSchema(next)
		}, watch.WithLogger(a.logger))
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}

// sessions builds the session manager: redis-backed with a distributed
// lock when an address is configured, in memory otherwise.
func (a *app) sessions(ctx context.Context, opts serveOptions) (*store.Manager, func(), error) {
	if opts.redisAddr == "" {
		mem := store.NewMemory(store.WithMemoryTTL(opts.ttl))
		return store.NewManager(mem, store.WithLogger(a.logger)), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.redisAddr,
		Password: opts.redisPassword,
		DB:       opts.redisDB,
	})
	backend := store.NewRedisFromClient(client, store.WithTTL(opts.ttl))
	if err := backend.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", opts.redisAddr, err)
	}
	a.logger.Info("sessions in redis", zap.String("addr", opts.redisAddr))

	manager := store.NewManager(backend,
		store.WithLocker(store.NewRedisLocker(client, "", opts.lockTTL)),
		store.WithLogger(a.logger),
	)
	closeFn := func() {
		if err := backend.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	return manager, closeFn, nil
}
