package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/banknote-assistant/pkg/denomination"
	"github.com/menta2k/banknote-assistant/pkg/types"
)

var (
	// ErrUnsupportedFormat is returned for images outside the accepted formats
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidImage is returned when the bytes are not a readable image
	ErrInvalidImage = errors.New("invalid image")
)

// DefaultFormats are the formats accepted by NewProcessor
var DefaultFormats = []string{"jpeg", "png", "webp"}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// Processor handles image metadata and diagnostic rendering
type Processor struct {
	formats []string
}

// NewProcessor creates a processor accepting the given formats. No formats
// means DefaultFormats.
func NewProcessor(formats ...string) *Processor {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	normalized := make([]string, 0, len(formats))
	for _, f := range formats {
		normalized = append(normalized, normalizeFormat(f))
	}
	return &Processor{formats: normalized}
}

// Inspect reads the pixel dimensions and format without decoding pixels
func (p *Processor) Inspect(data []byte) (ImageInfo, error) {
	info, err := decodeInfo(data)
	if err != nil {
		return ImageInfo{}, err
	}
	if !p.isFormatSupported(info.Format) {
		return ImageInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, info.Format)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("%w: empty image %dx%d", ErrInvalidImage, info.Width, info.Height)
	}
	return info, nil
}

func decodeInfo(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("%w: no data", ErrInvalidImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		return ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: normalizeFormat(format)}, nil
	}

	// Fallback: libwebp parser, accepts extended WebP variants.
	if w, h, _, werr := webp.GetInfo(data); werr == nil {
		return ImageInfo{Width: w, Height: h, Format: "webp"}, nil
	}

	return ImageInfo{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
}

func (p *Processor) isFormatSupported(format string) bool {
	for _, supported := range p.formats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

func normalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == "jpg" {
		return "jpeg"
	}
	return f
}

// Decode decodes image bytes, applying EXIF orientation
func (p *Processor) Decode(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%w: unknown or unsupported format", ErrInvalidImage)
}

// LoadImage reads and decodes an image file
func (p *Processor) LoadImage(path string) (image.Image, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read image file: %w", err)
	}
	img, err := p.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

// DrawDetections returns a copy of img with every detection box drawn.
// Boxes whose label resolves to a denomination are green, others red.
// Boxes are in the pixel space of the image the detector received.
func (p *Processor) DrawDetections(img image.Image, dets []types.Detection, resolver *denomination.Resolver) image.Image {
	if resolver == nil {
		resolver = denomination.Default()
	}

	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}
	red := color.NRGBA{255, 0, 0, 255}
	stroke := max(2, int(0.004*float64(min(w, h))))

	for _, d := range dets {
		c := red
		if _, ok := resolver.Resolve(d.Class); ok {
			c = green
		}
		drawBox(nrgba, d.BBox, c, stroke)
	}
	return nrgba
}

// CropDetection cuts the detection box out of img, grown by paddingRatio of
// the box size on every side and clamped to the image bounds.
func (p *Processor) CropDetection(img image.Image, box types.BBox, paddingRatio float64) (image.Image, error) {
	padX := box.Width() * paddingRatio
	padY := box.Height() * paddingRatio

	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+int(box.Left()-padX),
		b.Min.Y+int(box.Top()-padY),
		b.Min.X+int(box.Right()+padX+0.5),
		b.Min.Y+int(box.Bottom()+padY+0.5),
	).Intersect(b)

	if rect.Empty() {
		return nil, fmt.Errorf("detection box %v is outside the %dx%d image", box, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, rect), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch normalizeFormat(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default:
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

func drawBox(img *image.NRGBA, box types.BBox, c color.NRGBA, stroke int) {
	x0, y0 := int(box.Left()+0.5), int(box.Top()+0.5)
	x1, y1 := int(box.Right()+0.5), int(box.Bottom()+0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < 0 || y >= b.Dy() {
		return
	}
	x0, x1 = max(x0, 0), min(x1, b.Dx())
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < 0 || x >= b.Dx() {
		return
	}
	y0, y1 = max(y0, 0), min(y1, b.Dy())
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
