// Package httpserver 将会话注册表以 JSON HTTP 接口的形式对外暴露。
package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lk2023060901/danmu-online-go/pkg/util/logutil"
	"github.com/lk2023060901/danmu-online-go/pkg/util/typeutil"
)

// Registry 为 HTTP 层依赖的会话注册表能力。
type Registry interface {
	Login(userID string) (string, error)
	Heartbeat(sessionID string) bool
	Logout(sessionID string)
	IsValidSession(sessionID string) bool
	OnlineCount() int
	OnlineUsers() typeutil.Set[string]
}

type options struct {
	clock       clockwork.Clock
	cors        bool
	metricsPath string
	gatherer    prometheus.Gatherer
	ready       func() bool
}

// Option 用于配置 Server。
type Option func(opt *options)

// WithClock 设置生成响应时间戳所用的时钟。
func WithClock(clock clockwork.Clock) Option {
	return func(opt *options) {
		if clock != nil {
			opt.clock = clock
		}
	}
}

// WithCORS 控制是否附加跨域响应头。
func WithCORS(enable bool) Option {
	return func(opt *options) {
		opt.cors = enable
	}
}

// WithMetrics 在 path 上暴露 gatherer 中的指标，path 为空表示不暴露。
func WithMetrics(path string, gatherer prometheus.Gatherer) Option {
	return func(opt *options) {
		opt.metricsPath = path
		if gatherer != nil {
			opt.gatherer = gatherer
		}
	}
}

// WithReadiness 设置健康检查使用的就绪判断，未设置时视为始终就绪。
func WithReadiness(ready func() bool) Option {
	return func(opt *options) {
		opt.ready = ready
	}
}

// Server 持有路由表与注册表引用，本身不管理监听和生命周期。
type Server struct {
	registry Registry
	opts     *options
	engine   *gin.Engine
}

// New 创建 Server 并注册全部路由。
func New(registry Registry, opts ...Option) *Server {
	o := &options{
		clock:    clockwork.NewRealClock(),
		cors:     true,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		registry: registry,
		opts:     o,
		engine:   gin.New(),
	}
	s.engine.Use(requestMetrics())
	if o.cors {
		s.engine.Use(cors())
	}
	s.engine.Use(logutil.TraceLogger(), recovery())
	s.registerRoutes()
	return s
}

// Handler 返回可交给 http.Server 使用的 Handler。
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.index)
	s.engine.GET("/api/health", s.health)

	api := s.engine.Group("/api/online")
	api.GET("/count", s.count)
	api.POST("/login", s.login)
	api.POST("/heartbeat", s.heartbeat)
	api.POST("/logout", s.logout)
	api.GET("/users", s.users)
	api.POST("/validate", s.validate)

	if s.opts.metricsPath != "" {
		s.engine.GET(s.opts.metricsPath, gin.WrapH(promhttp.HandlerFor(s.opts.gatherer, promhttp.HandlerOpts{})))
	}

	s.engine.NoRoute(func(c *gin.Context) {
		writeJSON(c, http.StatusNotFound, failure("not found"))
	})
}

func (s *Server) nowMillis() int64 {
	return s.opts.clock.Now().UnixMilli()
}
