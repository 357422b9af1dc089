// Package banknoteassistant recognizes Peruvian banknotes in a photo and
// describes them in Spanish, as text and as speech.
//
// A request flows through four stages:
//
// 1. Processing (pkg/processing): reads the image format and pixel size
// 2. Detection (pkg/detection): asks a detection backend for boxes and
// normalizes them to pixel coordinates
// 3. Interpretation (pkg/interpreter): filters by confidence, groups by
// label, totals the amount and narrates the result
// 4. Speech (pkg/speech): synthesizes the narration into an MP3 file
//
// Basic usage:
//
//	rf, err := roboflow.NewClient(roboflow.Config{Endpoint: endpoint, APIKey: key}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	audio, err := speech.NewService(speech.NewGoogleTTS("", 0), speech.Options{
//		Dir:     "./static/audio",
//		BaseURL: "http://localhost:8000",
//		TTL:     time.Hour,
//	}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	assistant := banknoteassistant.New(
//		detection.NewDetector(rf, nil),
//		interpreter.New(0.4, nil),
//		audio,
//		processing.NewProcessor(),
//		nil,
//	)
//
//	resp, err := assistant.Describe(ctx, banknoteassistant.Request{Image: data, Filename: "foto.jpg"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(resp.Text) // Se detectó 1 billete de 50 soles
package banknoteassistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/menta2k/banknote-assistant/internal/logging"
	"github.com/menta2k/banknote-assistant/pkg/detection"
	"github.com/menta2k/banknote-assistant/pkg/interpreter"
	"github.com/menta2k/banknote-assistant/pkg/processing"
	"github.com/menta2k/banknote-assistant/pkg/speech"
	"github.com/menta2k/banknote-assistant/pkg/types"
)

// Version of the banknote assistant
const Version = "1.0.0"

var (
	// ErrInvalidImage is returned when the upload is not a usable image
	ErrInvalidImage = errors.New("invalid image")
	// ErrDetectionFailed is returned when the detection backend cannot answer
	ErrDetectionFailed = errors.New("detection failed")
)

// Request is one image to describe
type Request struct {
	Image         []byte
	Filename      string
	IncludeBase64 bool
}

// Assistant wires the detection pipeline together
type Assistant struct {
	detector    *detection.Detector
	interpreter *interpreter.Interpreter
	speaker     *speech.Service
	processor   *processing.Processor
	logger      *slog.Logger
}

// New creates an Assistant. A nil processor accepts the default formats and
// a nil logger discards output.
func New(detector *detection.Detector, interp *interpreter.Interpreter, speaker *speech.Service, processor *processing.Processor, logger *slog.Logger) *Assistant {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Assistant{
		detector:    detector,
		interpreter: interp,
		speaker:     speaker,
		processor:   processor,
		logger:      logger,
	}
}

// Backend returns the name of the detection backend
func (a *Assistant) Backend() string {
	return a.detector.Backend()
}

// Threshold returns the confidence threshold used for counting
func (a *Assistant) Threshold() float64 {
	return a.interpreter.Threshold()
}

// Describe detects the banknotes in req.Image and returns the narrated
// response with its audio.
func (a *Assistant) Describe(ctx context.Context, req Request) (*types.PredictionResponse, error) {
	result, err := a.Analyze(ctx, req.Image, req.Filename)
	if err != nil {
		return nil, err
	}

	audio, err := a.speaker.Speak(ctx, result.Text)
	if err != nil {
		return nil, fmt.Errorf("narration audio failed: %w", err)
	}

	resp := &types.PredictionResponse{
		OK:          result.OK,
		Text:        result.Text,
		AudioURL:    audio.URL,
		Detections:  result.Detections,
		TotalAmount: result.TotalAmount,
	}
	if req.IncludeBase64 {
		resp.AudioBase64 = a.speaker.Base64(audio.Path)
	}

	a.logger.Info("banknotes described",
		"ok", resp.OK,
		"total_amount", resp.TotalAmount,
		"detections", len(resp.Detections),
		"audio", audio.Filename)

	return resp, nil
}

// Analyze runs inspection, detection and interpretation without speech
func (a *Assistant) Analyze(ctx context.Context, image []byte, filename string) (types.Result, error) {
	info, err := a.processor.Inspect(image)
	if err != nil {
		return types.Result{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	dets, err := a.detector.Detect(ctx, image, filename, info.Width, info.Height)
	if err != nil {
		return types.Result{}, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}

	return a.interpreter.Interpret(dets), nil
}
