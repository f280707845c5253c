package provider

import (
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log categories, used as zap logger names.
const (
	CategoryGameProvider = "GameProvider"
	CategoryGamePatch    = "GamePatch"
	CategoryEntrypoint   = "Entrypoint"
	CategoryKnot         = "Knot"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the provider package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the provider package's logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// NewLogger builds the Warzone console log:
//
//	15:04:05 INFO: (GameProvider) Launch directory is /opt/warzone
//
// Entries below ERROR that pass min go to stdout, ERROR and above always go
// to stderr. The category is the logger name.
func NewLogger(stdout, stderr io.Writer, min zapcore.Level) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "category",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:      encodeLevel,
		EncodeName:       encodeCategory,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	})

	out := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= min && l < zapcore.ErrorLevel
	})
	errs := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	})
	return zap.New(zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(stdout)), out),
		zapcore.NewCore(enc.Clone(), zapcore.Lock(zapcore.AddSync(stderr)), errs),
	))
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(l.CapitalString() + ":")
}

func encodeCategory(name string, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("(" + name + ")")
}
