package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Leveled logger shared by the relay, the gateway and the supervisor.
// - zerolog underneath, JSON by default or console output when pretty
// - Debugf/Infof/Warnf/Errorf/Fatalf for plain messages, With(component) for structured ones

const FieldComponent = "component"

var (
	mu     sync.RWMutex
	out    io.Writer = os.Stdout
	base             = zerolog.New(os.Stdout).With().Timestamp().Logger()
	level            = zerolog.InfoLevel
	pretty bool
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = parseLevel(l)
	rebuild()
}

// SetPretty switches between JSON lines and a human-readable console writer.
func SetPretty(p bool) {
	mu.Lock()
	defer mu.Unlock()
	pretty = p
	rebuild()
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// rebuild must be called with mu held.
func rebuild() {
	w := out
	if pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	base = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// L returns the global logger.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a child logger tagged with the given component name.
func With(component string) zerolog.Logger {
	l := L()
	return l.With().Str(FieldComponent, component).Logger()
}

func Debugf(format string, v ...interface{}) {
	l := L()
	l.Debug().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	l := L()
	l.Info().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	l := L()
	l.Warn().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	l := L()
	l.Error().Msgf(format, v...)
}

// Fatalf logs regardless of level and exits the process.
func Fatalf(format string, v ...interface{}) {
	l := L()
	l.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, v...))
	os.Exit(1)
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case zerolog.DebugLevel:
		return "debug"
	case zerolog.WarnLevel:
		return "warn"
	case zerolog.ErrorLevel:
		return "error"
	case zerolog.FatalLevel:
		return "fatal"
	}
	return "info"
}
