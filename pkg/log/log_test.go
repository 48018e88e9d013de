package log

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLoggerWithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Level:  "info",
		Format: "json",
		File: FileLogConfig{
			RootPath: dir,
			Filename: "online.log",
		},
	}
	logger, props, err := InitLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, props.Level.Level())
	assert.Equal(t, defaultLogMaxSize, cfg.File.MaxSize)

	logger.Debug("invisible")
	logger.Info("user login", FieldUserID("alice"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "online.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"userID":"alice"`)
	assert.NotContains(t, string(data), "invisible")
}

func TestInitLoggerRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	_, _, err := InitLogger(&Config{Level: "info", File: FileLogConfig{RootPath: dir, Filename: "sub"}})
	assert.Error(t, err)
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	_, _, err := InitLogger(&Config{Level: "loud"})
	assert.Error(t, err)

	_, props, err := InitLogger(&Config{Level: "trace"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())
}

func TestInitTestLogger(t *testing.T) {
	logger, _, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	logger.Debug("hello from test logger", zap.Int("n", 1))
}

func TestCtxLogger(t *testing.T) {
	assert.NotNil(t, Ctx(nil))
	assert.NotNil(t, Ctx(context.Background()))

	ctx := WithFields(context.Background(), FieldModule("online"))
	ctx = WithReqID(ctx, "req-1")
	l := Ctx(ctx)
	assert.NotNil(t, l)
	assert.NotSame(t, Ctx(context.Background()).Logger, l.Logger)

	ctx = WithLevel(ctx, zapcore.ErrorLevel)
	assert.False(t, Ctx(ctx).Core().Enabled(zapcore.WarnLevel))
	assert.True(t, Ctx(ctx).Core().Enabled(zapcore.ErrorLevel))

	// 级别之后追加的字段保留该级别。
	ctx = WithTraceID(ctx, "trace-1")
	assert.False(t, Ctx(ctx).Core().Enabled(zapcore.WarnLevel))
}

func TestMLoggerRateGroup(t *testing.T) {
	l := With(FieldModule("test")).WithRateGroup("test.rated", 1, 1)
	assert.True(t, l.RatedInfo(1, "first"))
	assert.False(t, l.RatedInfo(1, "second"))

	// 子 Logger 共享限流器。
	child := l.With(zap.String("k", "v"))
	assert.False(t, child.RatedWarn(1, "third"))
}

func TestBinder(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())

	l := With(FieldComponent("binder"))
	b.SetLogger(l)
	assert.Same(t, l, b.Logger())
}

func TestRatedWithoutGroup(t *testing.T) {
	l := With(FieldComponent("unrated"))
	for i := 0; i < 3; i++ {
		assert.True(t, l.RatedWarn(1000, "never dropped without a rate group"))
	}
}

func TestNewModuleLogger(t *testing.T) {
	before := leveledL(zapcore.InfoLevel)

	dir := t.TempDir()
	logger, props, err := NewModuleLogger(&Config{
		Level:  "warn",
		Format: "json",
		File:   FileLogConfig{RootPath: dir, Filename: "module.log"},
	})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, props.Level.Level())
	assert.Same(t, before, leveledL(zapcore.InfoLevel))

	logger.Info("dropped")
	logger.Warn("kept", FieldSessionID("sess_1"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "module.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sessionID":"sess_1"`)
	assert.NotContains(t, string(data), "dropped")
}
