package log

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	StagePlanned   = "Planned"
	StageInstalled = "Installed"
	StageFailed    = "Failed"
	StageVerified  = "Verified"
)

// InstallRecord is one entry of the install history file.
// All records of a single invocation share the same RunID.
type InstallRecord struct {
	Kind    string `json:"kind"`
	RunID   string `json:"runID"`
	Stage   string `json:"stage"`
	Command string `json:"command"`
	Channel string `json:"channel"`
	Target  string `json:"target"`
	Data    any    `json:"data"`
}

type RecordOption func(*InstallRecord)

func (rec *InstallRecord) applyOpts(opts []RecordOption) {
	for _, opt := range opts {
		opt(rec)
	}

	if rec.Kind == "" {
		rec.Kind = "Install"
	}
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
}

func WithRunID(runID string) RecordOption {
	return func(rec *InstallRecord) {
		rec.RunID = runID
	}
}

func WithStage(stage string) RecordOption {
	return func(rec *InstallRecord) {
		rec.Stage = stage
	}
}

func WithCommand(command string) RecordOption {
	return func(rec *InstallRecord) {
		rec.Command = command
	}
}

func WithChannel(channel string) RecordOption {
	return func(rec *InstallRecord) {
		rec.Channel = channel
	}
}

func WithTarget(target string) RecordOption {
	return func(rec *InstallRecord) {
		rec.Target = target
	}
}

func WithData(data any) RecordOption {
	return func(rec *InstallRecord) {
		rec.Data = data
	}
}

type RecordLogger interface {
	Record(...RecordOption)
}

func NewNopRecordLogger() RecordLogger {
	return &recordLogger{logger: zap.NewNop()}
}

// NewRecordLogger appends JSON lines to the given file, rotated by lumberjack.
func NewRecordLogger(recordFile string) RecordLogger {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   recordFile,
		MaxSize:    16, // megabytes
		MaxBackups: 3,
		Compress:   true,
	})
	return newRecordLogger(w)
}

func newRecordLogger(w zapcore.WriteSyncer) RecordLogger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.LevelKey = ""
	encoderConfig.MessageKey = ""
	encoderConfig.CallerKey = ""
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		w,
		zap.NewAtomicLevelAt(zap.InfoLevel),
	)
	return &recordLogger{logger: zap.New(core)}
}

type recordLogger struct {
	logger *zap.Logger
}

func (l *recordLogger) Record(opts ...RecordOption) {
	rec := &InstallRecord{}
	rec.applyOpts(opts)

	l.logger.Log(zapcore.InfoLevel, "",
		zap.String("kind", rec.Kind),
		zap.String("runID", rec.RunID),
		zap.String("stage", rec.Stage),
		zap.String("command", rec.Command),
		zap.String("channel", rec.Channel),
		zap.String("target", rec.Target),
		zap.Any("data", rec.Data),
	)
}

// CreateRecordFilepath derives the history file path from the log file path.
// e.g., "/var/log/torchup.log" becomes "/var/log/torchup.history".
func CreateRecordFilepath(logFile string) string {
	return strings.TrimSuffix(logFile, ".log") + ".history"
}
