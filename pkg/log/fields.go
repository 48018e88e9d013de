package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameSessionID = "sessionID"
	FieldNameUserID    = "userID"
	FieldNameRequestID = "requestID"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

func FieldSessionID(sessionID string) zap.Field {
	return zap.String(FieldNameSessionID, sessionID)
}

func FieldUserID(userID string) zap.Field {
	return zap.String(FieldNameUserID, userID)
}
