// Package log provides the logging functionality for torchup.
package log

import (
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger *torchupLogger
var nopLogger = zap.NewNop().Sugar()

func init() {
	Logger = CreateLogger(zap.NewAtomicLevelAt(zap.WarnLevel), "", nil)
}

// consoleEncoderConfig renders human-readable console lines.
func consoleEncoderConfig() zapcore.EncoderConfig {
	c := zap.NewDevelopmentEncoderConfig()
	c.EncodeTime = zapcore.ISO8601TimeEncoder
	c.EncodeLevel = zapcore.CapitalLevelEncoder
	c.CallerKey = zapcore.OmitKey
	c.StacktraceKey = zapcore.OmitKey
	return c
}

func newLumberjackCore(logFile string, maxSize int, enab zapcore.LevelEnabler) zapcore.Core {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSize, // megabytes
		MaxBackups: 3,
		MaxAge:     7,    // days
		Compress:   true, // compress the rotated files
	})

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), w, enab)
}

// ParseLogLevel parses the level name, defaulting to "warn" when empty.
func ParseLogLevel(logLevel string) (zap.AtomicLevel, error) {
	if logLevel == "" {
		return zap.NewAtomicLevelAt(zap.WarnLevel), nil
	}
	return zap.ParseAtomicLevel(logLevel)
}

// CreateLogger writes console logs to the console writer (stderr if nil),
// keeping stdout free for the synthesized command and the report.
// With a log file, every entry at logLevel goes to the rotated file and
// the console still receives the warnings and errors.
func CreateLogger(logLevel zap.AtomicLevel, logFile string, console io.Writer) *torchupLogger {
	if console == nil {
		console = os.Stderr
	}
	consoleEnab := zapcore.LevelEnabler(logLevel)
	if logFile != "" {
		consoleEnab = zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.WarnLevel && logLevel.Enabled(lvl)
		})
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig()),
		zapcore.Lock(zapcore.AddSync(console)),
		consoleEnab,
	)
	if logFile != "" {
		core = zapcore.NewTee(core, newLumberjackCore(logFile, 64, logLevel))
	}
	return newTorchupLogger(zap.New(core).Sugar())
}

type torchupLogger struct {
	logger atomic.Pointer[zap.SugaredLogger]
}

func newTorchupLogger(logger *zap.SugaredLogger) *torchupLogger {
	l := &torchupLogger{}
	l.set(logger)
	return l
}

func (l *torchupLogger) get() *zap.SugaredLogger {
	if l == nil {
		return nopLogger
	}
	logger := l.logger.Load()
	if logger == nil {
		return nopLogger
	}
	return logger
}

func (l *torchupLogger) set(logger *zap.SugaredLogger) {
	if logger == nil {
		logger = nopLogger
	}
	l.logger.Store(logger)
}

// SetLogger swaps the logger behind the package-level Logger,
// so references captured before the swap follow it.
func SetLogger(logger *torchupLogger) {
	if logger == nil {
		Logger.set(nil)
		return
	}
	Logger.set(logger.get())
}

// NewZapLogger wraps an existing zap logger, mostly for tests
// that observe log output.
func NewZapLogger(logger *zap.Logger) *torchupLogger {
	if logger == nil {
		return newTorchupLogger(nil)
	}
	return newTorchupLogger(logger.Sugar())
}

func (l *torchupLogger) Sync() error {
	return l.get().Sync()
}

func (l *torchupLogger) Debugw(msg string, keysAndValues ...interface{}) {
	l.get().Debugw(msg, keysAndValues...)
}

func (l *torchupLogger) Infow(msg string, keysAndValues ...interface{}) {
	l.get().Infow(msg, keysAndValues...)
}

func (l *torchupLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.get().Warnw(msg, keysAndValues...)
}
