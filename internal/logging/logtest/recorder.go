// Package logtest provides a capturing logging.Logger for tests.
package logtest

import (
	"maps"
	"sync"
)

// Entry is one captured record.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// Recorder captures records in memory. It can be told to fail or panic on a
// level to exercise fault paths. The zero value is ready to use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	fail    map[string]error
	panics  map[string]any
}

// FailOn makes every write at level return err without recording.
func (r *Recorder) FailOn(level string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail == nil {
		r.fail = map[string]error{}
	}
	r.fail[level] = err
}

// PanicOn makes every write at level panic with v.
func (r *Recorder) PanicOn(level string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panics == nil {
		r.panics = map[string]any{}
	}
	r.panics[level] = v
}

func (r *Recorder) Error(msg string, fields map[string]any) error {
	return r.record("error", msg, fields)
}

func (r *Recorder) Info(msg string, fields map[string]any) error {
	return r.record("info", msg, fields)
}

func (r *Recorder) Debug(msg string, fields map[string]any) error {
	return r.record("debug", msg, fields)
}

func (r *Recorder) record(level, msg string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.panics[level]; ok {
		panic(v)
	}
	if err, ok := r.fail[level]; ok {
		return err
	}
	r.entries = append(r.entries, Entry{Level: level, Message: msg, Fields: maps.Clone(fields)})
	return nil
}

// Entries returns every captured record in write order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Level returns the captured records at level.
func (r *Recorder) Level(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
