package online

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Session 表示一次登录产生的在线会话。
//
// SessionID 与 UserID 在会话生命周期内不可变，LastActive 只会被心跳刷新。
// 注册表对外只返回 Session 的值拷贝。
type Session struct {
	SessionID  string
	UserID     string
	LastActive time.Time
}

// expired 判断会话在 now 时刻是否已经超过 ttl 没有活跃。
// 恰好等于 ttl 时仍视为存活。
func (s Session) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActive) > ttl
}

// MarshalLogObject 实现 zapcore.ObjectMarshaler，便于以 zap.Object 输出。
func (s Session) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("sessionID", s.SessionID)
	enc.AddString("userID", s.UserID)
	enc.AddTime("lastActive", s.LastActive)
	return nil
}
