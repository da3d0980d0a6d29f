// Package labels turns the per-image text output of the detection model into
// structured label records.
package labels

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Record is a single detected object. Coordinates are normalized to [0,1].
type Record struct {
	Class  string  `json:"class"`
	CX     float64 `json:"cx"`
	CY     float64 `json:"cy"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ValidationError reports a label line that cannot be turned into a Record.
type ValidationError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("label line %d %q: %s", e.Line, e.Text, e.Reason)
}

const fieldsPerLine = 5

// Parse converts lines of the form "class_index cx cy w h" into records,
// preserving input order. Blank lines are ignored. The first invalid line
// aborts the whole parse.
func Parse(lines []string, table ClassTable) ([]Record, error) {
	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != fieldsPerLine {
			return nil, &ValidationError{Line: i + 1, Text: line, Reason: fmt.Sprintf("expected %d fields, got %d", fieldsPerLine, len(fields))}
		}

		index, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, &ValidationError{Line: i + 1, Text: line, Reason: "class index is not an integer"}
		}
		name, ok := table.Name(index)
		if !ok {
			return nil, &ValidationError{Line: i + 1, Text: line, Reason: fmt.Sprintf("unknown class index %d", index)}
		}

		var coords [4]float64
		for j := range coords {
			v, err := strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, &ValidationError{Line: i + 1, Text: line, Reason: fmt.Sprintf("field %d is not a number", j+2)}
			}
			if math.IsNaN(v) || v < 0 || v > 1 {
				return nil, &ValidationError{Line: i + 1, Text: line, Reason: fmt.Sprintf("field %d is outside [0,1]", j+2)}
			}
			coords[j] = v
		}

		records = append(records, Record{
			Class:  name,
			CX:     coords[0],
			CY:     coords[1],
			Width:  coords[2],
			Height: coords[3],
		})
	}
	return records, nil
}

// ParseFile reads a label file and parses it with Parse.
func ParseFile(path string, table ClassTable) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(strings.Split(string(data), "\n"), table)
}
