package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	in := map[string]any{"title": "Emma", "price": 2.99}

	if err := SaveJSON(in, path); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["title"] != "Emma" || got["price"] != 2.99 {
		t.Errorf("unexpected export %v", got)
	}
}

func TestSaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	header := []string{"Title", "Price"}
	rows := [][]string{{"Emma", "2.99"}, {"Dune, Part One", "4.50"}}

	if err := SaveCSV(header, rows, path); err != nil {
		t.Fatalf("SaveCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 || records[2][0] != "Dune, Part One" {
		t.Errorf("unexpected records %v", records)
	}
}

func TestSaveCSV_RaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := SaveCSV([]string{"A", "B"}, [][]string{{"only one"}}, path); err == nil {
		t.Error("expected error for a short row")
	}
}
