package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	mu       sync.RWMutex
	logger   zerolog.Logger
	initOnce sync.Once
	minLevel = zerolog.InfoLevel
	out      io.Writer
)

// initLogger sets up the global console logger on stderr.
func initLogger() {
	initOnce.Do(func() {
		zerolog.ErrorFieldName = "err"
		zerolog.TimeFieldFormat = consoleTimeFormat
		out = os.Stderr
		rebuildLocked()
	})
}

func rebuildLocked() {
	cw := zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat, NoColor: out != os.Stderr}
	logger = zerolog.New(cw).Level(minLevel).With().Timestamp().Logger()
}

// SetLevel changes the minimum level. Unknown names fall back to INFO.
func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	minLevel = parseLevel(string(l))
	rebuildLocked()
}

// SetOutput redirects log lines, mainly for tests. Color is disabled for
// anything that is not stderr.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
	rebuildLocked()
}

func Debug(msg string, kv ...any) {
	logWithLevel(zerolog.DebugLevel, msg, nil, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(zerolog.InfoLevel, msg, nil, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(zerolog.WarnLevel, msg, nil, kv...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(zerolog.ErrorLevel, msg, err, kv...)
}

func logWithLevel(level zerolog.Level, msg string, err error, kv ...any) {
	initLogger()
	mu.RLock()
	l := logger
	mu.RUnlock()

	e := l.WithLevel(level)
	if e == nil {
		return
	}
	if err != nil {
		e = e.Err(err)
	}
	// Expect kv as pairs: key, value, key, value, ...
	// A trailing odd value is ignored.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = withField(e, key, kv[i+1])
	}
	e.Msg(msg)
}

func withField(e *zerolog.Event, key string, val any) *zerolog.Event {
	switch v := val.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Duration:
		return e.Dur(key, v)
	case time.Time:
		return e.Time(key, v)
	case error:
		return e.AnErr(key, v)
	case fmt.Stringer:
		return e.Stringer(key, v)
	case []string:
		return e.Strs(key, v)
	default:
		return e.Interface(key, v)
	}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
