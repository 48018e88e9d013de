package application

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/atomic"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/danmu-online-go/internal/httpserver"
	"github.com/lk2023060901/danmu-online-go/internal/online"
	zlog "github.com/lk2023060901/danmu-online-go/pkg/log"
	"github.com/lk2023060901/danmu-online-go/pkg/metrics"
	"github.com/lk2023060901/danmu-online-go/pkg/util/paramtable"
)

const (
	// RegistryLoggerName 为会话注册表使用的模块 Logger 名称，对应配置 logging.registry。
	RegistryLoggerName = "registry"

	listenMaxRetries = 5
)

// Application 为在线状态服务的运行时容器。
// 它负责加载配置、初始化日志、创建会话注册表与 HTTP 服务，并管理它们的启动和退出顺序。
type Application struct {
	configPath string
	cfg        *paramtable.Config
	listener   net.Listener

	loggers  map[string]*zlog.MLogger
	registry *online.Registry
	server   *http.Server

	readyOnce sync.Once
	ready     chan struct{}
	addr      net.Addr
	// serving 在开始监听后置位，开始关闭时清除，供健康检查使用。
	serving atomic.Bool
}

// Option 用于配置 Application。
type Option func(a *Application)

// WithConfigPath 指定配置文件路径，等价于命令行参数 --config。
func WithConfigPath(path string) Option {
	return func(a *Application) {
		a.configPath = path
	}
}

// WithConfig 直接使用给定配置，跳过配置文件加载。
func WithConfig(cfg *paramtable.Config) Option {
	return func(a *Application) {
		a.cfg = cfg
	}
}

// WithListener 使用已经创建好的 Listener，忽略配置中的监听地址。
func WithListener(lis net.Listener) Option {
	return func(a *Application) {
		a.listener = lis
	}
}

// New 创建一个 Application。
func New(opts ...Option) *Application {
	a := &Application{
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 启动服务并阻塞直到 ctx 被取消或 HTTP 服务异常退出。
//
// 退出顺序：先优雅关闭 HTTP 服务，再停止注册表的过期清理并等待其结束，最后刷新日志。
func (a *Application) Run(ctx context.Context) error {
	if err := a.init(); err != nil {
		return err
	}
	defer func() {
		_ = zlog.Sync()
	}()

	a.registry.Start()
	defer a.registry.Stop()

	lis, err := a.listen(ctx)
	if err != nil {
		return err
	}
	a.markReady(lis.Addr())
	zlog.Info("online server started",
		zap.String("addr", lis.Addr().String()),
		zap.Duration("sessionTTL", a.registry.SessionTTL()),
		zap.Duration("sweepInterval", a.registry.SweepInterval()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve http")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.serving.Store(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		zlog.Info("online server shutting down")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown http")
		}
		return nil
	})

	err = g.Wait()
	zlog.Info("online server stopped", zap.Error(err))
	return err
}

// Serving 报告服务是否处于可对外服务状态。
func (a *Application) Serving() bool {
	return a.serving.Load()
}

// Ready 返回一个在服务开始监听后关闭的 channel。
func (a *Application) Ready() <-chan struct{} {
	return a.ready
}

// Addr 返回实际监听地址，Ready 之前为 nil。
func (a *Application) Addr() net.Addr {
	select {
	case <-a.ready:
		return a.addr
	default:
		return nil
	}
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *paramtable.Config {
	return a.cfg
}

// Registry 返回服务使用的会话注册表，Run 之前为 nil。
func (a *Application) Registry() *online.Registry {
	return a.registry
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With()
}

func (a *Application) init() error {
	if a.cfg == nil {
		cfg, err := paramtable.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else if err := a.cfg.Validate(); err != nil {
		return err
	}

	if err := a.initLogging(); err != nil {
		return err
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		zlog.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		zlog.Warn("set GOMAXPROCS failed", zap.Error(err))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	if strings.EqualFold(a.cfg.Log.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	serverOpts := []httpserver.Option{
		httpserver.WithCORS(a.cfg.HTTP.CORS),
		httpserver.WithReadiness(a.serving.Load),
	}
	if a.cfg.Metrics.Enable {
		metrics.Register(prometheus.DefaultRegisterer)
		serverOpts = append(serverOpts, httpserver.WithMetrics(a.cfg.Metrics.Path, prometheus.DefaultGatherer))
	}

	a.registry = online.NewRegistry(
		online.WithSessionTTL(a.cfg.Online.SessionTTL),
		online.WithSweepInterval(a.cfg.Online.SweepInterval),
		online.WithLogger(a.Logger(RegistryLoggerName).With(zlog.FieldComponent("online-registry"))),
		online.WithMetrics(a.cfg.Metrics.Enable),
	)
	a.server = &http.Server{
		Handler:           httpserver.New(a.registry, serverOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// listen 绑定监听地址，端口被占用等错误会以指数退避重试。
func (a *Application) listen(ctx context.Context) (net.Listener, error) {
	if a.listener != nil {
		return a.listener, nil
	}

	addr := a.cfg.HTTP.ListenAddr()
	var lc net.ListenConfig
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(bo, listenMaxRetries), ctx)
	lis, err := backoff.RetryNotifyWithData(func() (net.Listener, error) {
		return lc.Listen(ctx, "tcp", addr)
	}, b, func(err error, next time.Duration) {
		zlog.Warn("listen failed, retry later", zap.String("addr", addr), zap.Duration("next", next), zap.Error(err))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	return lis, nil
}

func (a *Application) markReady(addr net.Addr) {
	a.readyOnce.Do(func() {
		a.addr = addr
		a.serving.Store(true)
		close(a.ready)
	})
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	logger, props, err := zlog.InitLogger(&a.cfg.Log)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)
	return a.initModuleLoggers()
}

// initModuleLoggers 按 logging 配置节为各模块创建独立 Logger。
//
// Example:
//
//	logging:
//	  registry:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: registry.log
func (a *Application) initModuleLoggers() error {
	if len(a.cfg.Logging) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(a.cfg.Logging))
	for name, lc := range a.cfg.Logging {
		cfgCopy := lc
		logger, _, err := zlog.NewModuleLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}
	return nil
}
