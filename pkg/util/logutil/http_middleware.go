package logutil

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/danmu-online-go/pkg/log"
)

const (
	// RequestIDHeader 为请求 ID 所在的 HTTP 头，响应中会原样回写。
	RequestIDHeader = "X-Request-Id"
	// LogLevelHeader 允许客户端为单个请求指定日志级别。
	LogLevelHeader = "X-Log-Level"
	// ClientRequestMsecHeader 为客户端发出请求时的毫秒时间戳。
	ClientRequestMsecHeader = "X-Client-Request-Msec"
)

// TraceLogger 返回一个 gin 中间件，为每个请求的上下文注入带 requestID/traceID 的 Logger，
// 并在请求结束后输出一条访问日志。
func TraceLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		ctx := withLevelAndTrace(c.Request.Context(), c.Request.Header, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("cost", time.Since(start)),
			zap.String("clientIP", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		logger := log.Ctx(ctx)
		switch {
		case status >= http.StatusInternalServerError:
			logger.Warn("http request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Info("http request rejected", fields...)
		default:
			logger.Debug("http request", fields...)
		}
	}
}

func withLevelAndTrace(ctx context.Context, header http.Header, requestID string) context.Context {
	newctx := ctx
	// 解析客户端指定的日志级别，非法值忽略。
	if levelText := header.Get(LogLevelHeader); levelText != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(levelText)); err == nil {
			newctx = log.WithLevel(newctx, level)
		}
	}

	newctx = otel.GetTextMapPropagator().Extract(newctx, propagation.HeaderCarrier(header))

	// 如果请求 ID 本身是合法的 TraceID，则直接作为 TraceID 使用。
	traceID, err := trace.TraceIDFromHex(requestID)
	if err != nil {
		newctx = log.WithReqID(newctx, requestID)
	}

	if requestUnixmsec, ok := GetClientReqUnixmsec(header); ok {
		newctx = log.WithFields(newctx, zap.Int64("clientRequestUnixmsec", requestUnixmsec))
	}

	if !traceID.IsValid() {
		traceID = trace.SpanContextFromContext(newctx).TraceID()
	}
	if traceID.IsValid() {
		newctx = log.WithTraceID(newctx, traceID.String())
	}
	return newctx
}

// GetClientReqUnixmsec 读取客户端请求时间戳头。
func GetClientReqUnixmsec(header http.Header) (int64, bool) {
	value := header.Get(ClientRequestMsecHeader)
	if value == "" {
		return -1, false
	}
	requestUnixmsec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return -1, false
	}
	return requestUnixmsec, true
}
