package detector

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/example/polybot/internal/config"
	"github.com/example/polybot/internal/labels"
	"github.com/example/polybot/internal/logging"
)

// Tensor names of a YOLOv5 ONNX export.
const (
	onnxInputName  = "images"
	onnxOutputName = "output0"
)

var boxPalette = []color.RGBA{
	{255, 56, 56, 255},
	{255, 157, 151, 255},
	{255, 112, 31, 255},
	{255, 178, 29, 255},
	{207, 210, 49, 255},
	{72, 249, 10, 255},
	{146, 204, 23, 255},
	{61, 219, 134, 255},
	{26, 147, 52, 255},
	{0, 212, 187, 255},
	{44, 153, 168, 255},
	{0, 194, 255, 255},
	{52, 69, 147, 255},
	{100, 115, 255, 255},
	{0, 24, 236, 255},
	{132, 56, 255, 255},
}

// box is a detection in model input pixel coordinates.
type box struct {
	class  int
	score  float32
	cx, cy float32
	w, h   float32
}

// ONNXDetector runs a YOLOv5 ONNX export in process. The session and its
// tensors are shared, so runs are serialized.
type ONNXDetector struct {
	mu            sync.Mutex
	session       *ort.AdvancedSession
	input         *ort.Tensor[float32]
	output        *ort.Tensor[float32]
	inputSize     int
	numClasses    int
	names         labels.ClassTable
	confThreshold float32
	iouThreshold  float32
	logger        *zap.Logger
}

// NewONNXDetector loads the model. Close must be called to release it.
func NewONNXDetector(cfg config.Detector, names labels.ClassTable, logger *zap.Logger) (*ONNXDetector, error) {
	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	size := int64(cfg.InputSize)
	numClasses := classCount(names)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(anchorRows(cfg.InputSize)), int64(5+numClasses)))
	if err != nil {
		input.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{onnxInputName}, []string{onnxOutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXDetector{
		session:       session,
		input:         input,
		output:        output,
		inputSize:     cfg.InputSize,
		numClasses:    numClasses,
		names:         names,
		confThreshold: float32(cfg.ConfThreshold),
		iouThreshold:  float32(cfg.IoUThreshold),
		logger:        logger.Named("onnx_detector"),
	}, nil
}

// Detect runs the model on job.Source.
func (d *ONNXDetector) Detect(ctx context.Context, job Job) error {
	img, err := loadImage(job.Source)
	if err != nil {
		return logging.NewOperationError("detector.load_image", job.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	boxes, err := d.infer(preprocess(img, d.inputSize))
	if err != nil {
		return logging.NewOperationError("detector.onnx", job.Name, err)
	}
	boxes = nonMaxSuppression(boxes, d.iouThreshold)
	d.logger.Info("detection finished", zap.String("prediction_id", job.Name), zap.Int("objects", len(boxes)))

	if err := os.MkdirAll(job.OutputDir(), 0o755); err != nil {
		return logging.NewOperationError("detector.write_results", job.Name, err)
	}
	if err := saveImage(job.AnnotatedPath(), annotate(img, boxes, d.inputSize, d.names)); err != nil {
		return logging.NewOperationError("detector.write_results", job.Name, err)
	}
	if len(boxes) == 0 {
		return nil
	}
	if err := writeLabels(job.LabelsPath(), boxes, d.inputSize); err != nil {
		return logging.NewOperationError("detector.write_results", job.Name, err)
	}
	return nil
}

func (d *ONNXDetector) infer(input []float32) ([]box, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.input.GetData(), input)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return decodeDetections(d.output.GetData(), d.numClasses, d.confThreshold), nil
}

// Close releases the session and the ONNX environment.
func (d *ONNXDetector) Close() {
	if d.input != nil {
		d.input.Destroy()
	}
	if d.output != nil {
		d.output.Destroy()
	}
	if d.session != nil {
		d.session.Destroy()
	}
	ort.DestroyEnvironment()
}

func classCount(names labels.ClassTable) int {
	n := 0
	for index := range names {
		if index+1 > n {
			n = index + 1
		}
	}
	return n
}

// anchorRows is the number of candidate boxes YOLOv5 emits for a square input.
func anchorRows(size int) int {
	rows := 0
	for _, stride := range []int{8, 16, 32} {
		cells := size / stride
		rows += 3 * cells * cells
	}
	return rows
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// preprocess resizes img to size x size and lays it out as normalized CHW.
func preprocess(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	bounds := resized.Bounds()
	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*size + x
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(b) / 65535.0
		}
	}
	return data
}

// decodeDetections reads rows of [cx, cy, w, h, objectness, class scores...].
func decodeDetections(data []float32, numClasses int, confThreshold float32) []box {
	stride := 5 + numClasses
	var boxes []box
	for offset := 0; offset+stride <= len(data); offset += stride {
		row := data[offset : offset+stride]
		objectness := row[4]
		if objectness < confThreshold {
			continue
		}
		best, bestScore := 0, float32(0)
		for c, score := range row[5:] {
			if score > bestScore {
				best, bestScore = c, score
			}
		}
		score := objectness * bestScore
		if score < confThreshold {
			continue
		}
		boxes = append(boxes, box{class: best, score: score, cx: row[0], cy: row[1], w: row[2], h: row[3]})
	}
	return boxes
}

// nonMaxSuppression keeps the highest scoring box among overlapping boxes of
// the same class.
func nonMaxSuppression(boxes []box, iouThreshold float32) []box {
	sorted := append([]box(nil), boxes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	var kept []box
	for _, candidate := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.class == candidate.class && iou(k, candidate) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func iou(a, b box) float32 {
	ax1, ay1, ax2, ay2 := a.cx-a.w/2, a.cy-a.h/2, a.cx+a.w/2, a.cy+a.h/2
	bx1, by1, bx2, by2 := b.cx-b.w/2, b.cy-b.h/2, b.cx+b.w/2, b.cy+b.h/2

	iw := min(ax2, bx2) - max(ax1, bx1)
	ih := min(ay2, by2) - max(ay1, by1)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.w*a.h + b.w*b.h - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp01(v float32) float32 {
	return max(0, min(1, v))
}

func labelLine(b box, size int) string {
	s := float32(size)
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f\n", b.class, clamp01(b.cx/s), clamp01(b.cy/s), clamp01(b.w/s), clamp01(b.h/s))
}

func writeLabels(path string, boxes []box, size int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	for _, bx := range boxes {
		b.WriteString(labelLine(bx, size))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// annotate draws boxes, scaled from model input space, onto a copy of img.
func annotate(img image.Image, boxes []box, size int, names labels.ClassTable) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	sx := float32(bounds.Dx()) / float32(size)
	sy := float32(bounds.Dy()) / float32(size)
	for _, b := range boxes {
		c := boxPalette[b.class%len(boxPalette)]
		rect := image.Rect(
			int((b.cx-b.w/2)*sx), int((b.cy-b.h/2)*sy),
			int((b.cx+b.w/2)*sx), int((b.cy+b.h/2)*sy),
		).Intersect(dst.Bounds())
		if rect.Empty() {
			continue
		}
		strokeRect(dst, rect, c, 2)

		name, ok := names.Name(b.class)
		if !ok {
			name = fmt.Sprintf("class %d", b.class)
		}
		drawLabel(dst, rect.Min, fmt.Sprintf("%s %.2f", name, b.score), c)
	}
	return dst
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

func drawLabel(dst *image.RGBA, at image.Point, text string, background color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	top := at.Y - height
	if top < 0 {
		top = at.Y
	}
	bg := image.Rect(at.X, top, at.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, bg, image.NewUniform(background), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(at.X+2, top+face.Metrics().Ascent.Ceil()+1),
	}
	drawer.DrawString(text)
}

func saveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".png") {
		err = png.Encode(f, img)
	} else {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}
