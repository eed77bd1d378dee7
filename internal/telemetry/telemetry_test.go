package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestAppendWritesSchemaVersionedLine(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir, "20260801T000000Z", zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := sink.Append(Snapshot{RunID: "run-1", Tick: 7, Data: map[string]any{"flight_count": 2}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "run-20260801T000000Z.jsonl")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected one line")
	}
	var line map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if line["schema_version"] != float64(1) {
		t.Errorf("schema_version = %v, want 1", line["schema_version"])
	}
	if line["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want run-1", line["run_id"])
	}
	if line["tick"] != float64(7) {
		t.Errorf("tick = %v, want 7", line["tick"])
	}
	if line["flight_count"] != float64(2) {
		t.Errorf("flight_count = %v, want 2", line["flight_count"])
	}
}

func TestAppendFlushesAutomaticallyEvery100(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir, "20260801T000001Z", zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	for i := 0; i < 100; i++ {
		if err := sink.Append(Snapshot{RunID: "r", Tick: int64(i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	path := filepath.Join(dir, "run-20260801T000001Z.jsonl")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected data flushed to disk after 100 appends")
	}
}
