package labels

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var testTable = ClassTable{0: "person", 15: "cat", 16: "dog"}

func TestParsePreservesOrder(t *testing.T) {
	lines := []string{
		"15 0.5 0.5 0.2 0.3",
		"16 0.1 0.2 0.3 0.4",
		"15 0.9 0.8 0.1 0.1",
		"0 0.25 0.75 0.5 0.5",
	}

	records, err := Parse(lines, testTable)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(records) != len(lines) {
		t.Fatalf("expected %d records, got %d", len(lines), len(records))
	}
	for i, line := range lines {
		index := strings.Fields(line)[0]
		var want string
		switch index {
		case "0":
			want = "person"
		case "15":
			want = "cat"
		case "16":
			want = "dog"
		}
		if records[i].Class != want {
			t.Fatalf("record %d: expected class %s, got %s", i, want, records[i].Class)
		}
	}

	first := records[1]
	if first.CX != 0.1 || first.CY != 0.2 || first.Width != 0.3 || first.Height != 0.4 {
		t.Fatalf("unexpected coordinates: %+v", first)
	}
}

func TestParseSkipsBlankLines(t *testing.T) {
	records, err := Parse([]string{"", "16 0.1 0.1 0.1 0.1", "   "}, testTable)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestParseRejectsInvalidLines(t *testing.T) {
	cases := map[string]string{
		"unknown class":   "80 0.1 0.1 0.1 0.1",
		"too few fields":  "15 0.1 0.1 0.1",
		"too many fields": "15 0.1 0.1 0.1 0.1 0.9",
		"bad index":       "cat 0.1 0.1 0.1 0.1",
		"bad coordinate":  "15 0.1 x 0.1 0.1",
		"nan coordinate":  "15 NaN 0.1 0.1 0.1",
		"infinite width":  "15 0.1 0.1 Inf 0.1",
		"above one":       "15 0.1 1.5 0.1 0.1",
		"negative":        "15 0.1 0.1 0.1 -3",
	}

	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]string{"15 0.5 0.5 0.5 0.5", line}, testTable)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Line != 2 {
				t.Fatalf("expected line 2, got %d", vErr.Line)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat1.txt")
	if err := os.WriteFile(path, []byte("15 0.5 0.5 0.2 0.3\n16 0.1 0.2 0.3 0.4\n"), 0o644); err != nil {
		t.Fatalf("failed to write label file: %v", err)
	}

	records, err := ParseFile(path, testTable)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(records) != 2 || records[0].Class != "cat" || records[1].Class != "dog" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestParseClassTableListForm(t *testing.T) {
	table, err := ParseClassTable([]byte("path: ../datasets/coco128\nnc: 3\nnames: ['person', 'bicycle', 'car']\n"))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if name, _ := table.Name(2); name != "car" {
		t.Fatalf("expected car, got %q", name)
	}
}

func TestParseClassTableMapForm(t *testing.T) {
	table, err := ParseClassTable([]byte("names:\n  0: person\n  15: cat\n  16: dog\n"))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if name, ok := table.Name(15); !ok || name != "cat" {
		t.Fatalf("expected cat, got %q", name)
	}
	if _, ok := table.Name(1); ok {
		t.Fatal("expected index 1 to be absent")
	}
}

func TestParseClassTableMissingNames(t *testing.T) {
	if _, err := ParseClassTable([]byte("nc: 80\n")); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestParseFileRejectsOversizedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat1.txt")
	content := "15 0.5 0.5 0.2 0.3\n" + strings.Repeat("x", 70000) + "\n16 0.1 0.2 0.3 0.4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write label file: %v", err)
	}

	records, err := ParseFile(path, testTable)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got records=%d err=%v", len(records), err)
	}
	if vErr.Line != 2 {
		t.Fatalf("expected line 2, got %d", vErr.Line)
	}
}

func TestParseFileHandlesCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat1.txt")
	if err := os.WriteFile(path, []byte("15 0.5 0.5 0.2 0.3\r\n16 0.1 0.2 0.3 0.4\r\n"), 0o644); err != nil {
		t.Fatalf("failed to write label file: %v", err)
	}

	records, err := ParseFile(path, testTable)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(records) != 2 || records[1].Height != 0.4 {
		t.Fatalf("unexpected records: %+v", records)
	}
}
