package log

import "go.uber.org/atomic"

// Binder 嵌入到组件中，为组件提供可替换的 Logger。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// SetLogger 绑定 Logger，传入 nil 表示恢复使用全局 Logger。
func (w *Binder) SetLogger(logger *MLogger) {
	w.logger.Store(logger)
}

func (w *Binder) Logger() *MLogger {
	if l := w.logger.Load(); l != nil {
		return l
	}
	return With()
}
