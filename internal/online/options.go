package online

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lk2023060901/danmu-online-go/pkg/log"
)

const (
	// DefaultSweepInterval 为过期清理的默认执行周期。
	DefaultSweepInterval = 30 * time.Second
	// DefaultSessionTTL 为会话在没有心跳时的默认存活时长。
	DefaultSessionTTL = 60 * time.Second
)

type options struct {
	// clock 为注册表使用的时钟，测试中可替换为 clockwork.FakeClock。
	clock clockwork.Clock
	// sessionTTL 为会话最后一次活跃后的存活时长，超过即视为过期。
	sessionTTL time.Duration
	// sweepInterval 为后台过期清理的执行周期。
	sweepInterval time.Duration
	// logger 为注册表绑定的 Logger，为空时使用全局 Logger。
	logger *log.MLogger
	// metrics 表示是否将状态同步到 Prometheus 指标。
	metrics bool
}

// Option 用于配置 Registry 行为的选项函数。
type Option func(opt *options)

func defaultOptions() *options {
	return &options{
		clock:         clockwork.NewRealClock(),
		sessionTTL:    DefaultSessionTTL,
		sweepInterval: DefaultSweepInterval,
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(opt *options) {
		if clock != nil {
			opt.clock = clock
		}
	}
}

// WithSessionTTL 设置会话过期时长，非正值会被忽略。
func WithSessionTTL(d time.Duration) Option {
	return func(opt *options) {
		if d > 0 {
			opt.sessionTTL = d
		}
	}
}

// WithSweepInterval 设置过期清理周期，非正值会被忽略。
func WithSweepInterval(d time.Duration) Option {
	return func(opt *options) {
		if d > 0 {
			opt.sweepInterval = d
		}
	}
}

func WithLogger(logger *log.MLogger) Option {
	return func(opt *options) {
		opt.logger = logger
	}
}

func WithMetrics(enable bool) Option {
	return func(opt *options) {
		opt.metrics = enable
	}
}
