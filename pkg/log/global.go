// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLogKey struct{}

// Info 使用全局 Logger 在 Info 级别输出一条日志。
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn 使用全局 Logger 在 Warn 级别输出一条日志。
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// With 创建一个携带额外字段的子 Logger，不影响全局 Logger。
func With(fields ...zap.Field) *MLogger {
	return &MLogger{
		Logger: L().With(fields...).WithOptions(zap.AddCallerSkip(-1)),
	}
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return WithFields(ctx, zap.String("traceID", traceID))
}

func WithReqID(ctx context.Context, reqID string) context.Context {
	return WithFields(ctx, zap.String(FieldNameRequestID, reqID))
}

// WithFields 在 ctx 已绑定的 Logger（没有则为当前级别的全局 Logger）上追加字段。
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxLogKey{}, &MLogger{
		Logger: Ctx(ctx).Logger.With(fields...),
	})
}

// Ctx 返回 ctx 上绑定的 Logger，未绑定时返回全局 Logger。
func Ctx(ctx context.Context) *MLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLogKey{}).(*MLogger); ok {
			return l
		}
	}
	return &MLogger{Logger: ctxL()}
}

// WithLevel 返回绑定了指定级别 Logger 的上下文，会覆盖 ctx 上已有的 Logger。
// 级别低于全局级别时不生效。
func WithLevel(ctx context.Context, level zapcore.Level) context.Context {
	return context.WithValue(ctx, ctxLogKey{}, &MLogger{Logger: leveledL(level)})
}
