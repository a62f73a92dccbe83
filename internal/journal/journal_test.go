package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"perpvenue/internal/events"
)

func TestWriter_WriteSink(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.nowFn = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	sink := &events.Sink{}
	sink.Emit(events.KindCrankWorkPerformed, w.nowFn(), map[string]any{"count": 3})
	sink.EmitIntent(events.IntentCrank, "BTC_USD", nil)

	path, err := w.WriteSink("BTC_USD", "crank", sink, nil)
	if err != nil {
		t.Fatalf("WriteSink: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("path %s not under %s", path, dir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal file: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.Market != "BTC_USD" || rec.Op != "crank" || !rec.Success {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if len(rec.Events) != 1 || rec.Events[0].Kind != events.KindCrankWorkPerformed {
		t.Fatalf("events not persisted: %+v", rec.Events)
	}
	if len(rec.Intents) != 1 || rec.Intents[0].Kind != events.IntentCrank {
		t.Fatalf("intents not persisted: %+v", rec.Intents)
	}
	if rec.CycleNumber != 1 {
		t.Fatalf("CycleNumber = %d, want 1", rec.CycleNumber)
	}
}

func TestWriter_WriteSink_RecordsFailure(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.WriteSink("ETH_USD", "crank", nil, os.ErrDeadlineExceeded)
	if err != nil {
		t.Fatalf("WriteSink: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal file: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.Success {
		t.Fatal("expected Success=false")
	}
	if rec.ErrorMessage == "" {
		t.Fatal("expected ErrorMessage to be populated")
	}
}
