// Package telemetry records registry activity as a JSONL event stream.
// Publishes, dependency changes, resolutions, fault transitions, recoveries,
// and observer notifications each produce one line, so a registry's history
// can be audited and replayed.
package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of telemetry event.
const (
	KindPublish    = "publish"
	KindDependency = "dependency"
	KindResolve    = "resolve"
	KindFault      = "fault"
	KindRecover    = "recover"
	KindNotify     = "notify"
	KindPromote    = "promote"
	KindRestore    = "restore"
)

// Kinds lists every event kind.
func Kinds() []string {
	return []string{KindPublish, KindDependency, KindResolve, KindFault,
		KindRecover, KindNotify, KindPromote, KindRestore}
}

// Event represents a single telemetry record. Each event carries a timestamp,
// a kind tag, and the package it concerns along with arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	PackageID string    `json:"package,omitempty"`
	Level     string    `json:"fault,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events as JSONL. It is safe for concurrent use
// by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	w   io.Writer
	c   io.Closer
	enc *json.Encoder
	mu  sync.Mutex
	now func() time.Time
}

// NewEmitter creates an Emitter that appends to the file at path, creating
// it if needed.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	e := NewWriterEmitter(f)
	e.c = f
	return e, nil
}

// NewWriterEmitter creates an Emitter over w. Close does not close w.
func NewWriterEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w, enc: json.NewEncoder(w), now: time.Now}
}

// Emit writes a single event. A zero Timestamp is stamped with the current
// time. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the Emitter owns one. Calling Close
// on a nil Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil || e.c == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.c.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}

// Decode reads JSONL events from r until EOF, skipping blank lines. A
// truncated final line, as seen while a writer is mid-append, is ignored.
func Decode(r io.Reader) ([]Event, error) {
	var out []Event
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		complete := err == nil
		if err != nil && !errors.Is(err, io.EOF) {
			return out, fmt.Errorf("telemetry: read: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 && (complete || json.Valid(line)) {
			var evt Event
			if uerr := json.Unmarshal(line, &evt); uerr != nil {
				if complete {
					return out, fmt.Errorf("telemetry: decode: %w", uerr)
				}
			} else {
				out = append(out, evt)
			}
		}
		if !complete {
			return out, nil
		}
	}
}
