package logutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/danmu-online-go/pkg/log"
)

func setupFileLogger(t *testing.T) string {
	dir := t.TempDir()
	logger, props, err := log.InitLogger(&log.Config{
		Level:  "info",
		Format: "json",
		File:   log.FileLogConfig{RootPath: dir, Filename: "access.log"},
	})
	require.NoError(t, err)
	log.ReplaceGlobals(logger, props)
	return filepath.Join(dir, "access.log")
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(TraceLogger())
	engine.GET("/ping", func(c *gin.Context) {
		log.Ctx(c.Request.Context()).Info("inside handler")
		c.String(http.StatusOK, "pong")
	})
	engine.GET("/fail", func(c *gin.Context) {
		log.Ctx(c.Request.Context()).Info("inside handler")
		log.Ctx(c.Request.Context()).Error("handler failed")
		c.String(http.StatusInternalServerError, "fail")
	})
	return engine
}

// readLog 返回日志文件内容，文件只在首次写入时创建，不存在视为空。
func readLog(t *testing.T, path string) string {
	require.NoError(t, log.Sync())
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestTraceLoggerRequestID(t *testing.T) {
	path := setupFileLogger(t)
	engine := newEngine()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	req.Header.Set(ClientRequestMsecHeader, "1700000000000")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-abc", w.Header().Get(RequestIDHeader))

	content := readLog(t, path)
	assert.Contains(t, content, `"requestID":"req-abc"`)
	assert.Contains(t, content, `"clientRequestUnixmsec":1700000000000`)
}

func TestTraceLoggerGeneratesRequestID(t *testing.T) {
	setupFileLogger(t)
	engine := newEngine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestTraceLoggerTraceParent(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	path := setupFileLogger(t)
	engine := newEngine()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	engine.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, readLog(t, path), `"traceID":"4bf92f3577b34da6a3ce929d0e0e4736"`)
}

func TestTraceLoggerRequestIDAsTraceID(t *testing.T) {
	path := setupFileLogger(t)
	engine := newEngine()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "0af7651916cd43dd8448eb211c80319c")
	engine.ServeHTTP(httptest.NewRecorder(), req)

	content := readLog(t, path)
	assert.Contains(t, content, `"traceID":"0af7651916cd43dd8448eb211c80319c"`)
	assert.NotContains(t, content, `"requestID"`)
}

func TestTraceLoggerLogLevelHeader(t *testing.T) {
	path := setupFileLogger(t)
	engine := newEngine()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(LogLevelHeader, zapcore.ErrorLevel.String())
	req.Header.Set(RequestIDHeader, "quiet-request")
	engine.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, readLog(t, path))

	req = httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(LogLevelHeader, zapcore.ErrorLevel.String())
	req.Header.Set(RequestIDHeader, "quiet-failure")
	engine.ServeHTTP(httptest.NewRecorder(), req)

	content := readLog(t, path)
	assert.Contains(t, content, "handler failed")
	assert.Contains(t, content, `"requestID":"quiet-failure"`)
	assert.NotContains(t, content, "inside handler")
	// 访问日志为 Warn 级别，同样被过滤。
	assert.NotContains(t, content, "http request failed")

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(LogLevelHeader, "not-a-level")
	engine.ServeHTTP(httptest.NewRecorder(), req)
	assert.Contains(t, readLog(t, path), "inside handler")
}

func TestGetClientReqUnixmsec(t *testing.T) {
	header := http.Header{}
	_, ok := GetClientReqUnixmsec(header)
	assert.False(t, ok)

	header.Set(ClientRequestMsecHeader, "abc")
	_, ok = GetClientReqUnixmsec(header)
	assert.False(t, ok)

	header.Set(ClientRequestMsecHeader, "42")
	v, ok := GetClientReqUnixmsec(header)
	assert.True(t, ok)
	assert.EqualValues(t, 42, v)
}
