package bot

import (
	"testing"

	"github.com/example/polybot/internal/labels"
)

func records(classes ...string) []labels.Record {
	out := make([]labels.Record, 0, len(classes))
	for _, class := range classes {
		out = append(out, labels.Record{Class: class, CX: 0.5, CY: 0.5, Width: 0.1, Height: 0.1})
	}
	return out
}

func TestCountByClassKeepsFirstSeenOrder(t *testing.T) {
	counts := CountByClass(records("A", "B", "A", "C", "B"))

	want := []LabelCount{{"A", 2}, {"B", 2}, {"C", 1}}
	if len(counts) != len(want) {
		t.Fatalf("expected %d classes, got %d", len(want), len(counts))
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("position %d: expected %+v, got %+v", i, want[i], counts[i])
		}
	}
}

func TestCountByClassEmpty(t *testing.T) {
	if counts := CountByClass(nil); len(counts) != 0 {
		t.Fatalf("expected no counts, got %+v", counts)
	}
}

func TestRenderLabelCounts(t *testing.T) {
	got := RenderLabelCounts(CountByClass(records("cat", "cat", "dog")))
	want := "Detected the following objects within the image :\ncat : 2\ndog : 1\n"
	if got != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", got, want)
	}
}
