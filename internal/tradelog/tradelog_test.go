package tradelog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readOnlyFile(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one file in %s, got %d", dir, len(entries))
	}
	b, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestAppendWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROBOT_LOG_DIR", dir)

	if err := Append(Entry{Symbol: "INFY", Side: "BUY", Notional: 250.5, OrderID: "1", Status: "PLACED"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := Append(Entry{Symbol: "TCS", Side: "SELL", OrderID: "2", Status: "PLACED"}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(readOnlyFile(t, dir)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}

	var e Entry
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("Line is not valid json: %v", err)
	}
	if e.Symbol != "INFY" || e.Notional != 250.5 || e.Time == "" {
		t.Errorf("Round trip mismatch: %+v", e)
	}
}

func TestAppendSignalWritesToSignalsDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROBOT_LOG_DIR", dir)

	if err := AppendSignal(SignalEntry{Symbol: "INFY", Strategy: "zero-cross", Signal: "BUY", Close: 1501.2}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	content := readOnlyFile(t, filepath.Join(dir, "signals"))
	var e SignalEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &e); err != nil {
		t.Fatalf("Line is not valid json: %v", err)
	}
	if e.Signal != "BUY" || e.Strategy != "zero-cross" {
		t.Errorf("Round trip mismatch: %+v", e)
	}
}
