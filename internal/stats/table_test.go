package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Label", "Value", "Round"}
	rows := [][]string{
		{"VIS", "300", "1"},
		{"TOT", "1250", "12"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Label Value Round" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "VIS     300     1" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "TOT    1250    12" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}
