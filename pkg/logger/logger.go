// Package logger holds the process-wide zerolog logger.
//
// main calls Init once with the configured options; everything else either
// receives a logger through its constructor or asks for a tagged child with
// Component.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	// Level is one of trace, debug, info, warn (or warning), error.
	// Anything else falls back to info.
	Level string
	// Pretty switches to zerolog's console writer for local development.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service is stamped on every event as "service" when set.
	Service string
}

var (
	mu   sync.RWMutex
	root *zerolog.Logger
)

// Init builds the root logger on first use and returns it. Later calls return
// the existing logger and ignore opts.
func Init(opts Options) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		l := build(opts)
		root = &l
	}
	return *root
}

// Get returns the root logger and panics if Init has not run.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if root == nil {
		panic("logger: Get() called before Init()")
	}
	return *root
}

// Component returns a child of the root logger carrying a "component" field.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset drops the root logger so tests can call Init again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	root = nil
}

func build(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	fields := zerolog.New(out).Level(lvl).With().Timestamp().Caller()
	if opts.Service != "" {
		fields = fields.Str("service", opts.Service)
	}
	return fields.Logger()
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	switch lvl, err := zerolog.ParseLevel(s); {
	case err != nil, s == "":
		return zerolog.InfoLevel
	case lvl < zerolog.TraceLevel || lvl > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return lvl
	}
}
