package online

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-online-go/pkg/log"
	"github.com/lk2023060901/danmu-online-go/pkg/metrics"
	"github.com/lk2023060901/danmu-online-go/pkg/util/merr"
	"github.com/lk2023060901/danmu-online-go/pkg/util/typeutil"
)

// maxIDAttempts 为生成会话 ID 时遇到重复的最大重试次数。
const maxIDAttempts = 8

// Registry 维护当前所有在线会话以及由会话推导出的在线用户集合。
//
// 特性：
//   - 所有对 sessions/userRefs 的读写都在同一把读写锁下完成，外部只能看到操作边界上的状态；
//   - 同一用户的多个会话只计一次在线人数，userRefs 记录每个用户的存活会话数，归零才下线；
//   - 在线人数额外缓存在原子变量中，只在持有写锁时更新，OnlineCount 无需加锁；
//   - 过期会话由后台清理协程周期性移除，读操作不会顺带清理。
type Registry struct {
	log.Binder

	mu       sync.RWMutex
	sessions map[string]*Session
	userRefs map[string]int
	count    atomic.Int64
	ids      *idGenerator
	opts     *options

	startOnce sync.Once
	stopOnce  sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewRegistry 创建一个空的 Registry。
// 后台过期清理需要调用 Start 启动，进程退出前调用 Stop 等待其结束。
func NewRegistry(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	r := &Registry{
		sessions: make(map[string]*Session),
		userRefs: make(map[string]int),
		ids:      newIDGenerator(),
		opts:     o,
		closeCh:  make(chan struct{}),
	}
	if o.logger != nil {
		r.SetLogger(o.logger)
	} else {
		r.SetLogger(log.With(log.FieldComponent("online-registry")))
	}
	return r
}

// SessionTTL 返回会话过期时长。
func (r *Registry) SessionTTL() time.Duration {
	return r.opts.sessionTTL
}

// SweepInterval 返回后台清理周期。
func (r *Registry) SweepInterval() time.Duration {
	return r.opts.sweepInterval
}

// Login 为 userID 创建一个新会话并返回其 ID。
//
// userID 不能为空，否则返回 merr.ErrParameterInvalid；Stop 之后返回 merr.ErrServiceStopped。
// 返回的会话 ID 立即可用于 Heartbeat/Logout/IsValidSession。
func (r *Registry) Login(userID string) (string, error) {
	if userID == "" {
		r.observe(metrics.LoginOp, metrics.FailLabel)
		return "", merr.WrapErrParameterInvalidMsg("user_id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 停止清理后不再接受新会话，否则它们永远不会过期。
	if r.stopped() {
		r.observe(metrics.LoginOp, metrics.FailLabel)
		return "", merr.WrapErrServiceStopped("online-registry", "login")
	}

	now := r.opts.clock.Now()
	sessionID, err := r.nextIDLocked(now)
	if err != nil {
		r.observe(metrics.LoginOp, metrics.FailLabel)
		return "", err
	}
	r.sessions[sessionID] = &Session{
		SessionID:  sessionID,
		UserID:     userID,
		LastActive: now,
	}
	r.userRefs[userID]++
	r.syncLocked()

	r.observe(metrics.LoginOp, metrics.SuccessLabel)
	r.Logger().Debug("session login",
		log.FieldUserID(userID),
		log.FieldSessionID(sessionID),
		zap.Int("userSessions", r.userRefs[userID]))
	return sessionID, nil
}

// nextIDLocked 生成一个当前未被占用的会话 ID，调用方需持有写锁。
func (r *Registry) nextIDLocked(now time.Time) (string, error) {
	var sessionID string
	for i := 0; i < maxIDAttempts; i++ {
		id, err := r.ids.next(now)
		if err != nil {
			return "", err
		}
		if _, exists := r.sessions[id]; !exists {
			return id, nil
		}
		sessionID = id
		r.Logger().Warn("session id collided, regenerate", log.FieldSessionID(id), zap.Int("attempt", i))
	}
	return "", merr.WrapErrSessionIDConflict(sessionID)
}

// Heartbeat 刷新会话的最后活跃时间。
// 会话不存在（从未登录、已登出或已过期）时返回 false，不视为错误。
func (r *Registry) Heartbeat(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		r.observe(metrics.HeartbeatOp, metrics.NotFoundLabel)
		return false
	}
	sess.LastActive = r.opts.clock.Now()
	r.observe(metrics.HeartbeatOp, metrics.SuccessLabel)
	return true
}

// Logout 移除会话；会话不存在时什么也不做。
// 只有用户的最后一个会话被移除时，该用户才会离开在线集合。
func (r *Registry) Logout(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		r.observe(metrics.LogoutOp, metrics.NotFoundLabel)
		return
	}
	r.removeLocked(sess)
	r.syncLocked()

	r.observe(metrics.LogoutOp, metrics.SuccessLabel)
	r.Logger().Debug("session logout",
		log.FieldUserID(sess.UserID),
		log.FieldSessionID(sessionID),
		zap.Int("userSessions", r.userRefs[sess.UserID]))
}

// IsValidSession 判断会话当前是否存在。
// 只读查询，不会刷新 LastActive。
func (r *Registry) IsValidSession(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[sessionID]
	if ok {
		r.observe(metrics.ValidateOp, metrics.SuccessLabel)
	} else {
		r.observe(metrics.ValidateOp, metrics.NotFoundLabel)
	}
	return ok
}

// Get 返回会话的值拷贝。
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// OnlineCount 返回当前在线的去重用户数。
func (r *Registry) OnlineCount() int {
	return int(r.count.Load())
}

// OnlineUsers 返回当前在线用户集合的快照，调用方可以任意修改返回值。
func (r *Registry) OnlineUsers() typeutil.Set[string] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(typeutil.Set[string], len(r.userRefs))
	for userID := range r.userRefs {
		users.Insert(userID)
	}
	return users
}

// SessionCount 返回当前存活的会话数，同一用户的多个会话分别计数。
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// removeLocked 删除会话并递减所属用户的引用计数，调用方需持有写锁。
func (r *Registry) removeLocked(sess *Session) {
	delete(r.sessions, sess.SessionID)
	if refs := r.userRefs[sess.UserID]; refs <= 1 {
		delete(r.userRefs, sess.UserID)
	} else {
		r.userRefs[sess.UserID] = refs - 1
	}
}

// syncLocked 将在线人数写回原子缓存并刷新指标，调用方需持有写锁。
func (r *Registry) syncLocked() {
	r.count.Store(int64(len(r.userRefs)))
	if r.opts.metrics {
		metrics.OnlineUsers.Set(float64(len(r.userRefs)))
		metrics.OnlineSessions.Set(float64(len(r.sessions)))
	}
}

func (r *Registry) observe(op, result string) {
	if r.opts.metrics {
		metrics.SessionOperations.WithLabelValues(op, result).Inc()
	}
}
