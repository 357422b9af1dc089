package detection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/banknote-assistant/internal/logging"
	"github.com/menta2k/banknote-assistant/pkg/client"
	"github.com/menta2k/banknote-assistant/pkg/types"
)

// Detector sends images to a detection backend and normalizes the reply
type Detector struct {
	client client.DetectionClient
	logger *slog.Logger
}

// NewDetector creates a new detector with a detection client. A nil logger
// discards output.
func NewDetector(c client.DetectionClient, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Detector{client: c, logger: logger}
}

// Backend returns the name of the underlying detection client
func (d *Detector) Backend() string {
	return d.client.Name()
}

// Detect runs detection on image bytes whose pixel size is width x height.
// Zero predictions is not an error; an unreachable backend is.
func (d *Detector) Detect(ctx context.Context, image []byte, filename string, width, height int) ([]types.Detection, error) {
	raw, err := d.client.Predict(ctx, image, filename)
	if err != nil {
		return nil, fmt.Errorf("%s prediction failed: %w", d.client.Name(), err)
	}

	dets := Normalize(raw, width, height)
	d.logger.Debug("detections normalized",
		"backend", d.client.Name(),
		"count", len(dets),
		"image_width", width,
		"image_height", height)

	return dets, nil
}
