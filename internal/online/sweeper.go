package online

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-online-go/pkg/metrics"
)

// Start 启动后台过期清理协程，重复调用只生效一次。
// 清理协程每隔 SweepInterval 执行一次 Sweep，直到 Stop 被调用。
func (r *Registry) Start() {
	r.startOnce.Do(func() {
		ticker := r.opts.clock.NewTicker(r.opts.sweepInterval)
		r.wg.Add(1)
		go r.sweepLoop(ticker)
		r.Logger().Info("session sweeper started",
			zap.Duration("sweepInterval", r.opts.sweepInterval),
			zap.Duration("sessionTTL", r.opts.sessionTTL))
	})
}

// Stop 通知清理协程退出并等待其结束，可重复调用。
// Stop 返回后不会再有清理在执行，Login 返回 merr.ErrServiceStopped；
// 已有会话仍可心跳、登出和校验，只是不再过期。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.closeCh)
	})
	r.wg.Wait()
}

func (r *Registry) stopped() bool {
	select {
	case <-r.closeCh:
		return true
	default:
		return false
	}
}

func (r *Registry) sweepLoop(ticker clockwork.Ticker) {
	defer r.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-r.closeCh:
			r.Logger().Info("session sweeper stopped")
			return
		case <-ticker.Chan():
			r.safeSweep()
		}
	}
}

// safeSweep 执行一轮清理，出现 panic 时记录日志并等待下一轮。
func (r *Registry) safeSweep() {
	defer func() {
		if p := recover(); p != nil {
			r.Logger().Error("session sweep panicked, retry on next tick",
				zap.String("panic", fmt.Sprint(p)),
				zap.Stack("stack"))
		}
	}()
	r.Sweep()
}

// Sweep 立即执行一轮过期清理，返回被移除的会话数。
// 会话在 now-LastActive 严格大于 SessionTTL 时被视为过期。
func (r *Registry) Sweep() int {
	start := time.Now()
	expired, remain, online := r.evictExpired()
	cost := time.Since(start)

	if r.opts.metrics {
		metrics.SweepDuration.Observe(cost.Seconds())
		metrics.SessionsExpired.Add(float64(len(expired)))
	}
	logger := r.Logger()
	if len(expired) == 0 {
		logger.Debug("session sweep done, nothing expired",
			zap.Int("sessions", remain),
			zap.Duration("cost", cost))
		return 0
	}
	for i := range expired {
		logger.Debug("session expired", zap.Object("session", expired[i]))
	}
	logger.Info("session sweep evicted expired sessions",
		zap.Int("expired", len(expired)),
		zap.Int("sessions", remain),
		zap.Int("onlineUsers", online),
		zap.Duration("cost", cost))
	return len(expired)
}

// evictExpired 在写锁内扫描并移除所有过期会话。
func (r *Registry) evictExpired() (expired []Session, remain int, online int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.clock.Now()
	for _, sess := range r.sessions {
		if sess.expired(now, r.opts.sessionTTL) {
			expired = append(expired, *sess)
			r.removeLocked(sess)
		}
	}
	if len(expired) > 0 {
		r.syncLocked()
	}
	return expired, len(r.sessions), len(r.userRefs)
}
