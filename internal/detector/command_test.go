package detector

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"go.uber.org/zap"

	"github.com/example/polybot/internal/config"
)

// fakeDetectScript mimics the detect script: it copies the source into the
// run directory and writes one label line.
const fakeDetectScript = `
while [ $# -gt 0 ]; do
  case "$1" in
    --source) source="$2"; shift ;;
    --project) project="$2"; shift ;;
    --name) name="$2"; shift ;;
  esac
  shift
done
out="$project/$name"
mkdir -p "$out/labels"
base=$(basename "$source")
cp "$source" "$out/$base"
echo "15 0.5 0.5 0.2 0.2" > "$out/labels/${base%.*}.txt"
`

func TestJobPaths(t *testing.T) {
	job := Job{Source: "predictions/cat1.jpg", Project: "static/data", Name: "p-1"}

	if got, want := job.AnnotatedPath(), filepath.Join("static", "data", "p-1", "cat1.jpg"); got != want {
		t.Fatalf("AnnotatedPath = %s, want %s", got, want)
	}
	if got, want := job.LabelsPath(), filepath.Join("static", "data", "p-1", "labels", "cat1.txt"); got != want {
		t.Fatalf("LabelsPath = %s, want %s", got, want)
	}

	dotted := Job{Source: "/tmp/photo.v2.jpeg", Project: "runs", Name: "p-2"}
	if got, want := dotted.LabelsPath(), filepath.Join("runs", "p-2", "labels", "photo.v2.txt"); got != want {
		t.Fatalf("LabelsPath = %s, want %s", got, want)
	}
}

func TestCommandDetectorArgs(t *testing.T) {
	d := NewCommandDetector(config.Detector{Python: "python3", Script: "detect.py", Weights: "yolov5s.pt", Data: "data/coco128.yaml"}, zap.NewNop())
	args := d.Args(Job{Source: "predictions/cat1.jpg", Project: "static/data", Name: "p-1"})

	want := []string{"detect.py", "--weights", "yolov5s.pt", "--data", "data/coco128.yaml", "--source", "predictions/cat1.jpg",
		"--project", "static/data", "--name", "p-1", "--save-txt", "--exist-ok"}
	if len(args) != len(want) {
		t.Fatalf("unexpected args: %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: got %q, want %q", i, args[i], want[i])
		}
	}
}

func TestCommandDetectorRunsScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "detect.sh")
	if err := os.WriteFile(script, []byte(fakeDetectScript), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	source := filepath.Join(dir, "cat1.jpg")
	if err := os.WriteFile(source, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	d := NewCommandDetector(config.Detector{Python: "sh", Script: script, Weights: "w", Data: "d"}, zap.NewNop())
	job := Job{Source: source, Project: filepath.Join(dir, "runs"), Name: "p-1"}
	if err := d.Detect(context.Background(), job); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if _, err := os.Stat(job.AnnotatedPath()); err != nil {
		t.Fatalf("expected annotated image: %v", err)
	}
	data, err := os.ReadFile(job.LabelsPath())
	if err != nil {
		t.Fatalf("expected label file: %v", err)
	}
	if string(data) != "15 0.5 0.5 0.2 0.2\n" {
		t.Fatalf("unexpected labels: %q", data)
	}
}

func TestCommandDetectorReportsFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "detect.sh")
	if err := os.WriteFile(script, []byte("echo 'weights not found' >&2\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	d := NewCommandDetector(config.Detector{Python: "sh", Script: script}, zap.NewNop())
	if err := d.Detect(context.Background(), Job{Source: "x.jpg", Project: dir, Name: "p-1"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
