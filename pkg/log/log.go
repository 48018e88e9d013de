// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	_globalL, _globalP atomic.Value

	// _globalLevelLogger 按级别缓存共享同一输出的 Logger，供 Ctx/WithLevel 使用。
	_globalLevelLogger sync.Map
	// _namedRateLimiters 为 WithRateGroup 创建的命名限流器。
	_namedRateLimiters sync.Map
)

// RateLimiter 为限流日志所需的最小接口。
type RateLimiter interface {
	CheckCredit(delta float64) bool
}

// unlimited 从不丢弃日志，未绑定限流分组时使用。
type unlimited struct{}

func (unlimited) CheckCredit(float64) bool { return true }

func init() {
	l, p, _ := InitLogger(&Config{Level: "debug", Stdout: true}, zap.OnFatal(zapcore.WriteThenPanic))
	ReplaceGlobals(l, p)
}

// InitLogger 按配置创建 Logger，并以其输出替换 Ctx/WithLevel 使用的分级 Logger。
// 返回的 Logger 通常随后交给 ReplaceGlobals。
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	return initLogger(cfg, true, opts...)
}

// NewModuleLogger 按配置创建一个独立的 Logger，不影响任何全局状态。
func NewModuleLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	return initLogger(cfg, false, opts...)
}

func initLogger(cfg *Config, global bool, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	cfg.initialize()
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	output, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}

	// core 以 debug 创建后再调整到配置级别，分级 Logger 只能在此基础上提高级别。
	debugCfg := *cfg
	debugCfg.Level = zapcore.DebugLevel.String()
	debugL, props, err := InitLoggerWithWriteSyncer(&debugCfg, output, opts...)
	if err != nil {
		return nil, nil, err
	}
	props.Level.SetLevel(level)
	if !global {
		return debugL, props, nil
	}
	replaceLeveledLoggers(debugL)
	return debugL.WithOptions(zap.AddCallerSkip(1)), props, nil
}

// parseLevel 解析日志级别，trace 按 debug 处理。
func parseLevel(text string) (zapcore.Level, error) {
	if strings.EqualFold(text, "trace") {
		return zapcore.DebugLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return level, errors.Wrapf(err, "parse log level %q", text)
	}
	return level, nil
}

func openOutput(cfg *Config) (zapcore.WriteSyncer, error) {
	var outputs []zapcore.WriteSyncer
	if cfg.File.Filename != "" {
		lg, err := initFileLog(&cfg.File)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, zapcore.AddSync(lg))
	}
	if cfg.Stdout {
		stdout, _, err := zap.Open("stdout")
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, stdout)
	}
	return zap.CombineWriteSyncers(outputs...), nil
}

// InitTestLogger 创建一个写入 t.Log 的 Logger，zap 内部错误会使测试失败。
func InitTestLogger(t zaptest.TestingT, cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	writer := zaptest.NewTestingWriter(t)
	opts = append([]zap.Option{zap.ErrorOutput(writer.WithMarkFailed(true))}, opts...)
	return InitLoggerWithWriteSyncer(cfg, writer, opts...)
}

// InitLoggerWithWriteSyncer 使用给定输出创建 Logger。
func InitLoggerWithWriteSyncer(cfg *Config, output zapcore.WriteSyncer, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	cfg.initialize()
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, errors.Wrapf(err, "parse log level %q", cfg.Level)
	}
	core := zapcore.NewCore(newZapTextEncoder(cfg), output, level)
	lg := zap.New(core, append(cfg.buildOptions(output), opts...)...)
	return lg, &ZapProperties{
		Core:   core,
		Syncer: output,
		Level:  level,
	}, nil
}

// initFileLog 创建按大小滚动的文件输出。
func initFileLog(cfg *FileLogConfig) (*lumberjack.Logger, error) {
	logPath := filepath.Join(cfg.RootPath, cfg.Filename)
	if st, err := os.Stat(logPath); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %s is a directory", logPath)
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultLogMaxSize
	}
	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

// L 返回全局 Logger，可通过 ReplaceGlobals 替换，并发安全。
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

func ctxL() *zap.Logger {
	return leveledL(_globalP.Load().(*ZapProperties).Level.Level())
}

func leveledL(level zapcore.Level) *zap.Logger {
	if l, ok := _globalLevelLogger.Load(level); ok {
		return l.(*zap.Logger)
	}
	return L()
}

// ReplaceGlobals 替换全局 Logger 及其属性，并发安全。
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	_globalL.Store(logger)
	_globalP.Store(props)
}

func replaceLeveledLoggers(debugLogger *zap.Logger) {
	for level := zapcore.DebugLevel; level <= zapcore.FatalLevel; level++ {
		_globalLevelLogger.Store(level, debugLogger.WithOptions(zap.IncreaseLevel(level)))
	}
}

// Sync 刷新全局 Logger 中缓冲的日志。
func Sync() error {
	return L().Sync()
}
