// Package logging provides the structured log sink used by the HTTP layer.
//
// Records are split over two channels, mirroring how operators consume them:
//
//   - the error channel receives one record per classified request failure;
//   - the info channel receives everything else (correlation id generation,
//     access logs, lifecycle events).
//
// Both channels are backed by zerolog. Each channel writes to the console and,
// optionally, to its own file. With Async set, writes go through a zerolog
// diode so a slow sink never holds up a response; dropped records are
// reported on stderr.
package logging

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// Logger is the severity-leveled append capability handed to components that
// must log. Implementations must be safe for concurrent use. A non-nil error
// means the record may not have been written.
type Logger interface {
	Error(msg string, fields map[string]any) error
	Info(msg string, fields map[string]any) error
	Debug(msg string, fields map[string]any) error
}

// Options configures New.
type Options struct {
	Service      string // added to every record as "service"
	Pretty       bool   // human-readable console output
	Async        bool   // non-blocking writes through a diode
	ErrorFile    string // optional file for the error channel
	CombinedFile string // optional file for the info channel

	// Stdout and Stderr default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// Zerolog is the production Logger.
type Zerolog struct {
	errors  channel
	info    channel
	closers []io.Closer
}

var _ Logger = (*Zerolog)(nil)

type channel struct {
	base zerolog.Logger
	out  io.Writer
}

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// emit renders one record into a private buffer and hands it to the sink in a
// single Write, so the sink's error surfaces to the caller.
func (ch channel) emit(lvl zerolog.Level, msg string, fields map[string]any) error {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	l := ch.base.Output(buf)
	l.WithLevel(lvl).Fields(fields).Msg(msg)
	if buf.Len() == 0 {
		return nil // filtered by level
	}
	_, err := ch.out.Write(buf.Bytes())
	return err
}

// New builds the two-channel logger. Call Close on shutdown.
func New(opts Options) (*Zerolog, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if opts.Pretty {
		stdout = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339}
		stderr = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}

	z := &Zerolog{}
	errOut, err := z.sink(stderr, opts.ErrorFile, opts.Async, stderr)
	if err != nil {
		return nil, err
	}
	infoOut, err := z.sink(stdout, opts.CombinedFile, opts.Async, stderr)
	if err != nil {
		_ = z.Close()
		return nil, err
	}

	base := zerolog.New(io.Discard).With().Timestamp()
	if opts.Service != "" {
		base = base.Str("service", opts.Service)
	}
	root := base.Logger()

	z.errors = channel{base: root.Level(zerolog.ErrorLevel), out: errOut}
	z.info = channel{base: root.Level(zerolog.TraceLevel), out: infoOut}
	return z, nil
}

func (z *Zerolog) sink(console io.Writer, file string, async bool, alerts io.Writer) (io.Writer, error) {
	writers := []io.Writer{console}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", file, err)
		}
		z.closers = append(z.closers, f)
		writers = append(writers, f)
	}

	var out io.Writer = zerolog.MultiLevelWriter(writers...)
	if async {
		// The anonymous struct hides any Close method so the diode never
		// closes the console.
		d := diode.NewWriter(struct{ io.Writer }{out}, 1000, 10*time.Millisecond, func(missed int) {
			fmt.Fprintf(alerts, "logging: dropped %d records\n", missed)
		})
		z.closers = append([]io.Closer{d}, z.closers...)
		out = d
	}
	return out, nil
}

func (z *Zerolog) Error(msg string, fields map[string]any) error {
	return z.errors.emit(zerolog.ErrorLevel, msg, fields)
}

func (z *Zerolog) Info(msg string, fields map[string]any) error {
	return z.info.emit(zerolog.InfoLevel, msg, fields)
}

func (z *Zerolog) Debug(msg string, fields map[string]any) error {
	return z.info.emit(zerolog.DebugLevel, msg, fields)
}

// Zerolog returns a plain zerolog.Logger writing to the info channel, for
// code that logs through zerolog directly (access logs, bootstrap).
func (z *Zerolog) Zerolog() zerolog.Logger {
	return z.info.base.Output(z.info.out)
}

// Close flushes async writers and closes log files.
func (z *Zerolog) Close() error {
	var errs []error
	for _, c := range z.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	z.closers = nil
	return errors.Join(errs...)
}

// SetLevel configures the global zerolog level from a string value.
// Supported values (case-insensitive): debug, info, warn, error. Levels above
// error are clamped to error so the error channel is never silenced.
// Anything else selects info.
func SetLevel(lvl string) zerolog.Level {
	level := zerolog.InfoLevel
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error", "fatal", "panic", "disabled":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}
