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

	"sql-search/configs"
	"sql-search/internal/projection"
	"sql-search/internal/search"
	"sql-search/pkg/db"
	"sql-search/pkg/logger"
	"sql-search/pkg/metrics"
	"sql-search/pkg/middleware"
	"sql-search/pkg/pool"
	"sql-search/pkg/redis"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// App dials the connection pool and wires the search API on top of it. The
// returned cleanup closes everything App opened.
func App(ctx context.Context, conf *configs.Config, log *zap.Logger) (http.Handler, func(), error) {
	policy, err := projection.ParsePolicy(conf.UnknownTypePolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", configs.ErrStartupConfig, err)
	}

	backend, err := db.Open(conf)
	if err != nil {
		return nil, nil, err
	}

	connPool, err := pool.New[db.Conn](ctx, backend.Dial, pool.Options{
		MaxSize:        conf.DbConfig.PoolMaxSize,
		AcquireTimeout: conf.DbConfig.AcquireTimeout,
		NoWait:         conf.DbConfig.NoWait,
		IsBroken:       db.IsTransient,
	}, log.Named("pool"))
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	log.Info("connected to database", zap.String("dialect", string(backend.Dialect)))

	if err := metrics.RegisterPool(prometheus.DefaultRegisterer, metrics.PoolStatsFunc(func() (int, int, int) {
		s := connPool.Stats()
		return s.MaxSize, s.Acquired, s.Idle
	})); err != nil {
		log.Warn("pool metrics not registered", zap.Error(err))
	}

	// cache is optional
	var (
		cache      search.Cache
		closeCache = func() {}
	)
	if conf.CacheConfig.RedisURL != "" {
		rc, err := redis.NewCache(ctx, conf.CacheConfig.RedisURL, conf.CacheConfig.TTL, log.Named("cache"))
		if err != nil {
			log.Warn("result cache disabled", zap.Error(err))
		} else {
			cache = rc
			closeCache = func() { _ = rc.Close() }
			log.Info("result cache enabled", zap.Duration("ttl", conf.CacheConfig.TTL))
		}
	}

	router := http.NewServeMux()

	// repositories
	searchRepository := search.NewRepository(connPool, log.Named("search"))

	// services
	searchService := search.NewService(search.ServiceDeps{
		Repository: searchRepository,
		Projector: projection.New(
			projection.WithUnknownPolicy(policy),
			projection.WithLogger(log.Named("projection")),
		),
		Cache:        cache,
		QueryTimeout: conf.DbConfig.QueryTimeout,
		Logger:       log.Named("search"),
	})

	// controllers
	search.NewController(router, search.ControllerDeps{
		Service: searchService,
		Logger:  log.Named("search"),
	})

	httpLog := log.Named("http")
	handler := middleware.Chain(router,
		middleware.Recover(httpLog),
		middleware.RequestLog(httpLog),
		middleware.CORS(),
		middleware.Compress(),
	)

	cleanup := func() {
		closeCache()
		connPool.Close()
		if err := backend.Close(); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}
	return handler, cleanup, nil
}

func serve(conf *configs.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := App(ctx, conf, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if conf.ServerConfig.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, conf.ServerConfig.MetricsAddr, log.Named("metrics")); err != nil {
				log.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              conf.ServerConfig.Addr,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server is listening", zap.String("addr", conf.ServerConfig.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", conf.ServerConfig.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ServerConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRootCommand() *cobra.Command {
	var (
		addr     string
		poolSize int
		envFile  string
	)

	root := &cobra.Command{
		Use:   "sql-search",
		Short: "Run SQL over HTTP and return the rows as JSON",
		Long: `sql-search serves GET /search?query=<sql>, runs the statement on a bounded
pool of database connections and returns the rows as a JSON array.

The backend is selected by the DATABASE_URL scheme: mysql, sqlserver,
hdb or postgres.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var envFiles []string
			if envFile != "" {
				envFiles = append(envFiles, envFile)
			}
			conf, err := configs.LoadConfig(envFiles...)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				conf.ServerConfig.Addr = addr
			}
			if cmd.Flags().Changed("pool-size") {
				conf.DbConfig.PoolMaxSize = poolSize
				if err := conf.Validate(); err != nil {
					return err
				}
			}

			log, err := logger.New(logger.Config{
				Level:    conf.LogConfig.Level,
				Encoding: conf.LogConfig.Encoding,
			})
			if err != nil {
				return fmt.Errorf("%w: %w", configs.ErrStartupConfig, err)
			}
			defer func() { _ = log.Sync() }()

			if err := serve(conf, log); err != nil {
				log.Error("service stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}

	root.Flags().StringVar(&addr, "addr", "", "Listen address, overrides LISTEN_ADDR")
	root.Flags().IntVar(&poolSize, "pool-size", 0, "Connection pool size, overrides POOL_MAX_SIZE")
	root.Flags().StringVar(&envFile, "env-file", "", "Path to a .env file (default .env)")
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, configs.ErrStartupConfig) {
			fmt.Fprintln(os.Stderr, "startup configuration error:", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
