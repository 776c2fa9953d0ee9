package logger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envProd = "prod"

// NewLogger returns a JSON logger for "prod" and a console logger otherwise.
// With sentryEnabled, every entry at Error or above is also sent to Sentry.
func NewLogger(env string, sentryEnabled bool) (*zap.Logger, error) {
	logger, err := buildConfig(env).Build()
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}
	logger = logger.With(zap.String("app", "idlefleet"))

	if sentryEnabled {
		logger = logger.WithOptions(zap.Hooks(sentryHook))
	}
	return logger, nil
}

func buildConfig(env string) zap.Config {
	if env == envProd {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		config := zap.NewProductionConfig()
		config.EncoderConfig = encoderCfg
		return config
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder
	encoderCfg.StacktraceKey = ""

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

func sentryHook(entry zapcore.Entry) error {
	if entry.Level < zapcore.ErrorLevel {
		return nil
	}
	event := &sentry.Event{
		Message:   entry.Message,
		Level:     sentry.LevelError,
		Timestamp: entry.Time,
		Logger:    entry.LoggerName,
	}

	if entry.Stack != "" {
		stackTrace, err := parseStackTrace(entry.Stack)
		if err != nil {
			return err
		}
		event.Exception = []sentry.Exception{
			{
				Value:      entry.Message,
				Type:       "error",
				Stacktrace: stackTrace,
			},
		}
	}

	sentry.CaptureEvent(event)
	return nil
}

// parseStackTrace turns zap's "function\n\tfile:line" pairs into Sentry frames,
// oldest call first
func parseStackTrace(stack string) (*sentry.Stacktrace, error) {
	lines := strings.Split(strings.TrimSpace(stack), "\n")
	if len(lines)%2 != 0 {
		return nil, fmt.Errorf("invalid stack trace: odd number of lines (%d)", len(lines))
	}

	frames := make([]sentry.Frame, 0, len(lines)/2)
	for i := len(lines) - 2; i >= 0; i -= 2 {
		funcName := strings.TrimSpace(lines[i])
		location := strings.TrimSpace(lines[i+1])

		sep := strings.LastIndex(location, ":")
		if sep < 0 {
			return nil, fmt.Errorf("invalid stack trace line: %s", location)
		}
		lineNumber, err := strconv.Atoi(location[sep+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid stack trace line: %s", location)
		}

		frames = append(frames, sentry.Frame{
			Function: funcName,
			Filename: location[:sep],
			Lineno:   lineNumber,
		})
	}

	return &sentry.Stacktrace{Frames: frames}, nil
}
