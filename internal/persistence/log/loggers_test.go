package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"binrush.ai/internal/sim/engine"
	"binrush.ai/internal/submission"
)

func TestSubmissionLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewSubmissionLogger(dir)
	recs := []submission.Record{
		{At: 1, SessionID: "a", Name: "p1", Score: 90, OK: true, EntryID: 4},
		{At: 2, SessionID: "a", Name: "p1", Score: 90, Reason: "already_submitted"},
	}
	for _, r := range recs {
		if err := l.WriteSubmission(r); err != nil {
			t.Fatalf("WriteSubmission: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadSubmissions(dir)
	if err != nil {
		t.Fatalf("ReadSubmissions: %v", err)
	}
	if len(got) != 2 || got[0] != recs[0] || got[1] != recs[1] {
		t.Fatalf("got %+v", got)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(engine.Event{Kind: engine.EventSpawn, At: now, ItemID: "i1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(engine.Event{Kind: engine.EventPlace, At: now, ItemID: "i1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 ||
		filepath.Base(files[0]) != "events-2026-03-01-10.jsonl.zst" ||
		filepath.Base(files[1]) != "events-2026-03-01-11.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}

	var kinds []engine.EventKind
	for _, p := range files {
		err := ReadJSONL(p, func(line []byte) error {
			var ev engine.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				return err
			}
			kinds = append(kinds, ev.Kind)
			return nil
		})
		if err != nil {
			t.Fatalf("ReadJSONL: %v", err)
		}
	}
	if len(kinds) != 2 || kinds[0] != engine.EventSpawn || kinds[1] != engine.EventPlace {
		t.Fatalf("kinds=%v", kinds)
	}
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		l := NewEventLogger(dir)
		if err := l.WriteEvent(engine.Event{Kind: engine.EventTruck, Cleared: i + 1}); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	files, _ := ListFiles(filepath.Join(dir, "events"), "events")
	if len(files) == 0 {
		t.Fatalf("no event files")
	}
	n := 0
	for _, p := range files {
		_ = ReadJSONL(p, func([]byte) error { n++; return nil })
	}
	if n != 2 {
		t.Fatalf("lines=%d want 2", n)
	}
}

func TestListFiles_MissingDir(t *testing.T) {
	files, err := ListFiles(filepath.Join(t.TempDir(), "nope"), "audit")
	if err != nil || len(files) != 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}
}
