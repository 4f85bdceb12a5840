// Package app wires configuration, storage, messaging, the event dispatcher and transports into
// a runnable service.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/rl1809/orderflow/internal/adapter/handler"
	"github.com/rl1809/orderflow/internal/adapter/messaging"
	"github.com/rl1809/orderflow/internal/adapter/storage"
	"github.com/rl1809/orderflow/internal/config"
	"github.com/rl1809/orderflow/internal/core/event"
	"github.com/rl1809/orderflow/internal/core/listener"
	"github.com/rl1809/orderflow/internal/core/service"
	"github.com/rl1809/orderflow/internal/platform/observability"
	"github.com/rl1809/orderflow/internal/port"
)

// Container holds the long-lived resources of the service and closes them in reverse order.
type Container struct {
	cfg    config.Config
	logger *zap.Logger

	tracerProvider    *sdktrace.TracerProvider
	otelTraceShutdown func(context.Context) error
	otelLogShutdown   func(context.Context) error

	catalog         port.CatalogRepository
	catalogOverride port.CatalogRepository
	orders          port.OrderRepository
	claims  port.IdempotencyStore

	pool       *event.Pool
	dispatcher *event.Dispatcher

	OrderService   *service.OrderService
	CatalogService *service.CatalogService

	httpServer   *http.Server
	grpcServer   *grpc.Server
	healthServer *health.Server

	closers      []namedCloser
	shutdownOnce sync.Once
	shutdownErr  error
}

type namedCloser struct {
	name  string
	close func() error
}

type Option func(*Container)

// WithLogger replaces the logger built from configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithCatalog serves products from repo instead of the configured catalog backend.
func WithCatalog(repo port.CatalogRepository) Option {
	return func(c *Container) { c.catalogOverride = repo }
}

// New builds every component named by cfg. On error, whatever was already opened is closed.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	c := &Container{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"observability", c.setupObservability},
		{"storage", c.setupStorage},
		{"events", c.setupEvents},
		{"catalog seed", c.seedCatalog},
		{"transport", c.setupTransport},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			c.closeAll()
			return nil, fmt.Errorf("setup %s: %w", step.name, err)
		}
	}
	return c, nil
}

func (c *Container) Logger() *zap.Logger { return c.logger }

func (c *Container) setupObservability(ctx context.Context) error {
	logShutdown, err := observability.SetupLoggingSDK(ctx, c.cfg)
	if err != nil {
		return err
	}
	c.otelLogShutdown = logShutdown

	tp, traceShutdown, err := observability.SetupTracingSDK(ctx, c.cfg)
	if err != nil {
		return err
	}
	c.tracerProvider = tp
	c.otelTraceShutdown = traceShutdown

	if c.logger == nil {
		logger, err := observability.NewLogger(c.cfg.LogLevel, c.cfg.OtelEndpoint != "")
		if err != nil {
			return err
		}
		c.logger = logger
	}
	return nil
}

func (c *Container) addCloser(name string, fn func() error) {
	c.closers = append(c.closers, namedCloser{name: name, close: fn})
}

func (c *Container) setupStorage(ctx context.Context) error {
	switch c.cfg.StoreBackend {
	case config.StoreSQLite, config.StoreMySQL:
		store, err := c.openSQLStore(ctx)
		if err != nil {
			return err
		}
		c.catalog = store
		c.orders = store
		c.logger.Info("using SQL store", zap.String("dialect", string(store.Dialect())))
	default:
		c.catalog = storage.NewMemoryCatalog()
		c.orders = storage.NewMemoryOrders()
		c.logger.Info("using in-memory store")
	}

	if c.catalogOverride != nil {
		c.catalog = c.catalogOverride
	}

	if c.cfg.RedisAddr == "" {
		c.claims = storage.NewMemoryIdempotency(0)
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.cfg.RedisAddr,
		PoolSize: 100,
	})
	c.addCloser("redis", rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	c.claims = storage.NewRedisIdempotency(rdb, "", 0)
	if c.cfg.CatalogBackend == config.CatalogRedis && c.catalogOverride == nil {
		c.catalog = storage.NewRedisCatalog(rdb, "")
		c.logger.Info("using redis catalog", zap.String("addr", c.cfg.RedisAddr))
	}
	return nil
}

func (c *Container) openSQLStore(ctx context.Context) (*storage.SQLStore, error) {
	var (
		db      *sql.DB
		dialect storage.Dialect
		err     error
	)
	if c.cfg.StoreBackend == config.StoreSQLite {
		dialect = storage.DialectSQLite
		db, err = storage.OpenSQLite(c.cfg.SQLitePath)
	} else {
		dialect = storage.DialectMySQL
		db, err = storage.OpenMySQL(ctx, c.cfg.MySQLDSN)
	}
	if err != nil {
		return nil, err
	}
	c.addCloser("database", db.Close)
	return storage.NewSQLStore(ctx, db, dialect)
}

func (c *Container) setupEvents(ctx context.Context) error {
	audit := messaging.AuditSinks{messaging.NewLogAuditSink(c.logger)}
	if c.cfg.KafkaBroker != "" {
		writer, err := messaging.NewKafkaWriter(c.cfg.KafkaBroker, c.cfg.KafkaAuditTopic, config.ServiceName, c.tracerProvider)
		if err != nil {
			return err
		}
		c.addCloser("kafka writer", writer.Close)
		audit = append(audit, messaging.NewKafkaAuditSink(writer, c.logger))
		c.logger.Info("publishing audit records to kafka", zap.String("topic", c.cfg.KafkaAuditTopic))
	}

	var notifier port.Notifier = messaging.NewLogNotifier(c.logger)
	if c.cfg.AMQPURL != "" {
		conn, err := messaging.DialAMQP(ctx, c.cfg.AMQPURL, c.cfg.AMQPExchange, c.logger)
		if err != nil {
			return err
		}
		c.addCloser("amqp", conn.Close)
		notifier = messaging.NewAMQPNotifier(conn.Channel, c.cfg.AMQPExchange, c.logger)
		c.logger.Info("publishing notifications to rabbitmq", zap.String("exchange", c.cfg.AMQPExchange))
	}

	c.pool = event.NewPool(c.cfg.WorkerCount, c.cfg.QueueSize, c.logger.Named("pool"))
	c.dispatcher = event.NewDispatcher(c.pool,
		[]event.Handler{
			listener.NewAuditListener(audit, c.logger),
			listener.NewNotificationListener(notifier, c.logger),
			listener.NewInventoryListener(c.catalog, c.claims, c.logger),
		},
		c.logger.Named("dispatcher"),
		event.WithHandlerTimeout(c.cfg.HandlerTimeout),
		event.WithTracer(c.tracerProvider.Tracer(config.ServiceName)),
	)
	c.pool.Start()

	c.OrderService = service.NewOrderService(c.orders, service.NewAssembler(c.catalog), c.dispatcher, c.logger)
	c.CatalogService = service.NewCatalogService(c.catalog, c.logger)
	return nil
}

func (c *Container) seedCatalog(ctx context.Context) error {
	if !c.cfg.SeedCatalog {
		return nil
	}
	_, err := c.CatalogService.Seed(ctx, service.SampleProducts)
	return err
}

func (c *Container) setupTransport(ctx context.Context) error {
	var checks []handler.HealthCheck
	if p, ok := c.catalog.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, handler.HealthCheck{Name: "catalog", Check: p.Ping})
	}
	if p, ok := c.orders.(interface{ Ping(context.Context) error }); ok && any(c.orders) != any(c.catalog) {
		checks = append(checks, handler.HealthCheck{Name: "orders", Check: p.Ping})
	}

	c.httpServer = &http.Server{
		Addr:              c.cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(c.OrderService, c.CatalogService, c.logger, checks...).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	c.grpcServer = grpc.NewServer()
	c.healthServer = handler.RegisterGRPC(c.grpcServer, handler.NewGRPCHandler(c.OrderService, c.logger))
	return nil
}

// HTTPHandler exposes the API without binding a port.
func (c *Container) HTTPHandler() http.Handler {
	return c.httpServer.Handler
}

// Run serves HTTP and gRPC until ctx is cancelled, then shuts everything down.
func (c *Container) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", c.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", c.cfg.GRPCAddr)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}
	return c.Serve(ctx, httpLis, grpcLis)
}

// Serve is Run on listeners the caller already opened.
func (c *Container) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.logger.Info("HTTP server listening", zap.String("addr", httpLis.Addr().String()))
		if err := c.httpServer.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		c.logger.Info("gRPC server listening", zap.String("addr", grpcLis.Addr().String()))
		if err := c.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
		defer cancel()
		return c.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// DrainEvents stops accepting events and waits for in-flight handlers. Storage stays open, so
// callers can inspect the effects afterwards.
func (c *Container) DrainEvents(ctx context.Context) error {
	return c.pool.Shutdown(ctx)
}

// Shutdown stops intake first, then drains in-flight event handlers, then releases
// infrastructure. Safe to call more than once.
func (c *Container) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		var errs []error
		c.logger.Info("shutting down")

		if c.healthServer != nil {
			c.healthServer.Shutdown()
		}
		if c.httpServer != nil {
			if err := c.httpServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
		}
		if c.grpcServer != nil {
			c.grpcServer.GracefulStop()
		}
		if c.pool != nil {
			if err := c.pool.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
			submitted, overflowed, completed := c.pool.Stats()
			c.logger.Info("event handlers drained",
				zap.Uint64("submitted", submitted),
				zap.Uint64("overflowed", overflowed),
				zap.Uint64("completed", completed),
			)
		}

		errs = append(errs, c.closeAll())
		if c.otelTraceShutdown != nil {
			errs = append(errs, c.otelTraceShutdown(ctx))
		}
		if c.otelLogShutdown != nil {
			errs = append(errs, c.otelLogShutdown(ctx))
		}
		_ = c.logger.Sync()
		c.shutdownErr = errors.Join(errs...)
	})
	return c.shutdownErr
}

func (c *Container) closeAll() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.closers[i].name, err))
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
