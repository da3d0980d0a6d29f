package bot

import (
	"fmt"
	"strings"

	"github.com/example/polybot/internal/labels"
)

const summaryHeader = "Detected the following objects within the image :\n"

// LabelCount is the number of detections of one class.
type LabelCount struct {
	Class string
	Count int
}

// CountByClass counts labels per class, keeping classes in first-seen order.
func CountByClass(records []labels.Record) []LabelCount {
	index := make(map[string]int)
	var counts []LabelCount
	for _, record := range records {
		if i, ok := index[record.Class]; ok {
			counts[i].Count++
			continue
		}
		index[record.Class] = len(counts)
		counts = append(counts, LabelCount{Class: record.Class, Count: 1})
	}
	return counts
}

// RenderLabelCounts formats counts as the reply sent to the user.
func RenderLabelCounts(counts []LabelCount) string {
	var b strings.Builder
	b.WriteString(summaryHeader)
	for _, c := range counts {
		fmt.Fprintf(&b, "%s : %d\n", c.Class, c.Count)
	}
	return b.String()
}
