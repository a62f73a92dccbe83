// Package journal persists one audit record per engine invocation — a
// crank step, an ExecuteMsg, a countertrade decision — so an operator can
// reconstruct what happened and why after the fact.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"perpvenue/internal/events"
)

// Record captures a single engine invocation for audit and analysis.
type Record struct {
	Timestamp   time.Time      `json:"timestamp"`
	Market      string         `json:"market,omitempty"`
	Op          string         `json:"op"`
	CycleNumber int            `json:"cycle_number"`
	Events      []events.Event `json:"events,omitempty"`
	Intents     []events.Intent `json:"intents,omitempty"`
	Success     bool           `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Writer persists records to a directory as one JSON file per invocation.
type Writer struct {
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir, creating it if
// necessary.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteSink is the common case: wrap a completed operation's events.Sink
// into a Record and persist it, recording the error if the operation
// failed.
func (w *Writer) WriteSink(market, op string, sink *events.Sink, opErr error) (string, error) {
	rec := &Record{Market: market, Op: op, Success: opErr == nil}
	if sink != nil {
		rec.Events = sink.Events
		rec.Intents = sink.Intents
	}
	if opErr != nil {
		rec.ErrorMessage = opErr.Error()
	}
	return w.WriteCycle(rec)
}

// WriteCycle writes rec to a timestamped JSON file and returns its path.
func (w *Writer) WriteCycle(rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.CycleNumber = w.seq
	name := fmt.Sprintf("%s_%s_%05d.json", sanitize(rec.Op), rec.Timestamp.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitize(op string) string {
	if op == "" {
		return "cycle"
	}
	out := make([]byte, len(op))
	for i := 0; i < len(op); i++ {
		c := op[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
