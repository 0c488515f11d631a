package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/clog"
)

var (
	mu      sync.RWMutex
	current = newLogger("development", os.Stdout)
)

// Init configures the package logger for the given app environment.
// "production" writes JSON at info level, anything else writes colored console output at debug.
func Init(env string) {
	SetOutput(env, os.Stdout)
}

// SetOutput is Init with a custom writer.
func SetOutput(env string, w io.Writer) {
	l := newLogger(env, w)
	mu.Lock()
	current = l
	mu.Unlock()
}

func newLogger(env string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	if strings.EqualFold(env, "production") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(slog.LevelDebug),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	)
	return slog.New(handler)
}

func Get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// Fatal logs at error level and exits the process.
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
