package logger

import (
	stdlog "log"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured, leveled logger
type Logger struct {
	*zap.SugaredLogger
}

// New creates a JSON logger writing errors to stderr and everything else to stdout
func New(loglevel zapcore.Level) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	errorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= loglevel && lvl >= zapcore.ErrorLevel
	})

	infoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= loglevel && lvl < zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), errorLevel),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), infoLevel),
	)

	log := zap.New(core, zap.AddCaller())

	// Anything using the stdlib log package ends up here as an error
	_, _ = zap.RedirectStdLogAt(log, zapcore.ErrorLevel)

	return &Logger{
		log.Sugar(),
	}
}

// Named returns a child logger tagged with the component name
func (l *Logger) Named(component string) *Logger {
	return &Logger{l.SugaredLogger.Named(component)}
}

// noisyServerErrors are net/http server messages caused by clients rather than by us
var noisyServerErrors = []string{
	"http: URL query contains semicolon",
	"http: TLS handshake error",
}

type httpErrorLog struct {
	log *Logger
}

func (h *httpErrorLog) Write(p []byte) (int, error) {
	m := strings.TrimSpace(string(p))

	for _, prefix := range noisyServerErrors {
		if strings.HasPrefix(m, prefix) {
			h.log.Debug(m)
			return len(p), nil
		}
	}

	h.log.Error(m)
	return len(p), nil
}

// NewHTTPErrorLog returns a stdlib logger for http.Server.ErrorLog
func NewHTTPErrorLog(logger *Logger) *stdlog.Logger {
	return stdlog.New(&httpErrorLog{logger}, "", 0)
}
