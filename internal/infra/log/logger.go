package log

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Logger writes everything to logs/app.log. Until Init is called all loggers are no-ops,
// so library packages stay silent under go test.
var Logger = zap.NewNop()

var (
	successLogger = zap.NewNop() // console: ✓ / ✗ lines
	statusLogger  = zap.NewNop() // console: progress and summary lines
	initMu        sync.Mutex
	logFile       *rotatingLogWriter
)

// Init builds the file and console loggers. logsDir is created when missing.
func Init(logsDir string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if logsDir == "" {
		logsDir = "logs"
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		FunctionKey:    zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	writer, err := openLogFile(filepath.Join(logsDir, "app.log"))
	if err != nil {
		return err
	}
	fileCore := zapcore.NewCore(
		&customFileEncoder{Encoder: zapcore.NewConsoleEncoder(fileConfig)},
		zapcore.AddSync(writer),
		zapcore.DebugLevel,
	)

	success, err := buildConsoleLogger(successLevelEncoder)
	if err != nil {
		writer.Close()
		return fmt.Errorf("failed to build console logger: %w", err)
	}
	status, err := buildConsoleLogger(statusLevelEncoder)
	if err != nil {
		writer.Close()
		return fmt.Errorf("failed to build console logger: %w", err)
	}

	if logFile != nil {
		logFile.Close()
	}
	logFile = writer
	Logger = zap.New(fileCore)
	successLogger = success
	statusLogger = status
	return nil
}

// Sync flushes buffered entries. Errors from syncing stdout/stderr are ignored.
func Sync() {
	_ = Logger.Sync()
	_ = successLogger.Sync()
	_ = statusLogger.Sync()
}

func buildConsoleLogger(levelEncoder zapcore.LevelEncoder) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = levelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.EncoderConfig.EncodeCaller = nil
	cfg.Development = false
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return cfg.Build()
}

// GenerateRequestID returns a short random hex id used to correlate request/response lines.
func GenerateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// LogRequest records an outbound HTTP request in the file log.
func LogRequest(requestID, method, endpoint string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
	}, fields...)
	Logger.Info("HTTP request", allFields...)
}

// LogResponse records an HTTP response. Non-2xx responses are logged at error level.
func LogResponse(requestID string, statusCode int, durationMs int64, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	}, fields...)

	if statusCode >= 200 && statusCode < 300 {
		Logger.Info("HTTP response", allFields...)
		return
	}
	Logger.Error("HTTP response", allFields...)
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

func successLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level == zapcore.InfoLevel {
		enc.AppendString(colorGreen + "SUCCESS" + colorReset)
		return
	}
	statusLevelEncoder(level, enc)
}

func statusLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel, zapcore.InfoLevel:
		enc.AppendString(colorCyan + level.CapitalString() + colorReset)
	case zapcore.WarnLevel:
		enc.AppendString(colorYellow + "WARN" + colorReset)
	case zapcore.ErrorLevel, zapcore.FatalLevel, zapcore.PanicLevel:
		enc.AppendString(colorRed + level.CapitalString() + colorReset)
	default:
		enc.AppendString(colorWhite + level.String() + colorReset)
	}
}

// LogInfo writes to the file log only.
func LogInfo(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
}

// LogStatus writes to the file log and prints a plain progress line on the console.
func LogStatus(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
	statusLogger.Info(message)
}

// LogSuccess writes to the file log and prints a ✓ line on the console.
func LogSuccess(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)

	if durationMs := extractDuration(fields); durationMs > 0 {
		successLogger.Info(fmt.Sprintf("✓ %s (%dms)", message, durationMs))
	} else {
		successLogger.Info("✓ " + message)
	}
}

// LogError writes to the file log and prints a ✗ line on the console.
func LogError(message string, fields ...zap.Field) {
	Logger.Error(message, fields...)

	if durationMs := extractDuration(fields); durationMs > 0 {
		successLogger.Error(fmt.Sprintf("✗ %s (%dms)", message, durationMs))
	} else {
		successLogger.Error("✗ " + message)
	}
}

// LogWarn writes to the file log and echoes the message on the console.
func LogWarn(message string, fields ...zap.Field) {
	Logger.Warn(message, fields...)
	statusLogger.Warn(message)
}

// LogDebug writes to the file log only.
func LogDebug(message string, fields ...zap.Field) {
	Logger.Debug(message, fields...)
}

func extractDuration(fields []zap.Field) int64 {
	for _, field := range fields {
		if field.Key == "duration_ms" && field.Type == zapcore.Int64Type {
			return field.Integer
		}
	}
	return 0
}

// MaxLogFileSize caps app.log; the file is truncated once it grows past this.
const MaxLogFileSize = 50 * 1024 * 1024

type rotatingLogWriter struct {
	file *os.File
	path string
	mu   sync.Mutex
}

func openLogFile(path string) (*rotatingLogWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	w := &rotatingLogWriter{file: file, path: path}
	if err := w.truncateIfLarge(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *rotatingLogWriter) truncateIfLarge() error {
	info, err := w.file.Stat()
	if err != nil || info.Size() <= MaxLogFileSize {
		return nil
	}
	w.file.Close()
	w.file, err = os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to truncate log file: %w", err)
	}
	return nil
}

func (w *rotatingLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.truncateIfLarge(); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

func (w *rotatingLogWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

func (w *rotatingLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// customFileEncoder writes "time     LEVEL message\t{json fields}" lines.
type customFileEncoder struct {
	zapcore.Encoder
}

func (e *customFileEncoder) Clone() zapcore.Encoder {
	return &customFileEncoder{Encoder: e.Encoder.Clone()}
}

var bufferPool = buffer.NewPool()

func (e *customFileEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := bufferPool.Get()

	buf.AppendString(entry.Time.Format("2006-01-02 15:04:05"))
	buf.AppendString("     ")
	buf.AppendString(entry.Level.CapitalString())
	buf.AppendString(" ")
	buf.AppendString(entry.Message)

	if len(fields) > 0 {
		fieldMap := make(map[string]interface{}, len(fields))
		for _, field := range fields {
			fieldMap[field.Key] = fieldValue(field)
		}
		if jsonData, err := json.Marshal(fieldMap); err == nil {
			buf.AppendString("\t")
			buf.AppendString(string(jsonData))
		}
	}

	buf.AppendString("\n")
	return buf, nil
}

func fieldValue(field zapcore.Field) interface{} {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Uint64Type, zapcore.Uint32Type:
		return field.Integer
	case zapcore.BoolType:
		return field.Integer == 1
	case zapcore.DurationType:
		return time.Duration(field.Integer).String()
	case zapcore.TimeType:
		t := time.Unix(0, field.Integer)
		if loc, ok := field.Interface.(*time.Location); ok && loc != nil {
			t = t.In(loc)
		}
		return t.Format(time.RFC3339)
	case zapcore.TimeFullType:
		if t, ok := field.Interface.(time.Time); ok {
			return t.Format(time.RFC3339)
		}
		return nil
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			return err.Error()
		}
		return nil
	default:
		if field.Interface != nil {
			return field.Interface
		}
		return field.Integer
	}
}
