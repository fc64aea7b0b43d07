package log

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	_callerInfo = "NoCallerFile"

	DefaultEncoding = "json"
	DefaultLevel    = "info"
)

const CallHierarchy int = 2

var _log = zap.NewNop()

type Options struct {
	Level    string
	Encoding string
	Outputs  []string
}

type Option func(*Options)

func OptionWithLevel(l string) Option {
	return func(o *Options) {
		o.Level = l
	}
}

func OptionWithEncoding(e string) Option {
	return func(o *Options) {
		o.Encoding = e
	}
}

func OptionWithOutputs(p ...string) Option {
	return func(o *Options) {
		o.Outputs = p
	}
}

func JSON(v interface{}) string {
	return fmt.Sprintf("%+v", v)
}

func Debug(p string, f ...zapcore.Field) {
	write(zapcore.DebugLevel, p, f)
}

func Info(p string, f ...zapcore.Field) {
	write(zapcore.InfoLevel, p, f)
}

func Warn(p string, f ...zapcore.Field) {
	write(zapcore.WarnLevel, p, f)
}

func Error(p string, f ...zapcore.Field) {
	write(zapcore.ErrorLevel, p, f)
}

func write(lvl zapcore.Level, p string, f []zapcore.Field) {
	ce := _log.Check(lvl, p)
	if ce == nil {
		return
	}

	_, file, line, ok := runtime.Caller(CallHierarchy)
	callerInfo := _callerInfo

	if ok {
		callerInfo = fmt.Sprintf("%s:%d", file, line)
	}

	t := make([]zapcore.Field, 0, len(f)+1)
	t = append(t, zap.String("caller", callerInfo))
	t = append(t, f...)
	ce.Write(t...)
}

// Logger exposes the underlying zap logger for components that want their
// own named child.
func Logger() *zap.Logger {
	return _log
}

func parseLevel(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func Init(servername string, opts ...Option) {
	o := Options{
		Level:    DefaultLevel,
		Encoding: DefaultEncoding,
		Outputs:  []string{"stdout"},
	}

	for _, opt := range opts {
		opt(&o)
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(o.Level)),
		Development:      false,
		Encoding:         o.Encoding,
		EncoderConfig:    encoderConfig,
		InitialFields:    map[string]interface{}{"servername": servername},
		OutputPaths:      o.Outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	l, e := config.Build()
	if e != nil {
		panic(fmt.Sprintf("log init failed: %v", e))
	}

	_log = l
}

func Sync() {
	_ = _log.Sync()
}
