package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/banknote-assistant/internal/config"
	"github.com/menta2k/banknote-assistant/internal/logging"
	"github.com/menta2k/banknote-assistant/internal/utils"
	"github.com/menta2k/banknote-assistant/pkg/client"
	"github.com/menta2k/banknote-assistant/pkg/denomination"
	"github.com/menta2k/banknote-assistant/pkg/detection"
	"github.com/menta2k/banknote-assistant/pkg/interpreter"
	"github.com/menta2k/banknote-assistant/pkg/llamacpp"
	"github.com/menta2k/banknote-assistant/pkg/ollama"
	"github.com/menta2k/banknote-assistant/pkg/processing"
	"github.com/menta2k/banknote-assistant/pkg/roboflow"
	"github.com/menta2k/banknote-assistant/pkg/speech"
	"github.com/menta2k/banknote-assistant/pkg/types"
)

func main() {
	var in, outDir, backend, url, model, apiKey string
	var threshold float64
	var overlay, crops, audio, debug bool

	// Overlay format
	var dbgext string
	var dbgquality int
	var dbglossless bool

	flag.StringVar(&in, "in", "", "input image or directory of images (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "out", "output directory")
	flag.StringVar(&backend, "backend", config.BackendRoboflow, "backend to use: roboflow, ollama or llamacpp")
	flag.StringVar(&url, "url", "", "backend URL (roboflow: model endpoint, ollama: http://localhost:11434, llamacpp: http://localhost:8080)")
	flag.StringVar(&model, "model", "", "model name for ollama or llamacpp")
	flag.StringVar(&apiKey, "key", os.Getenv("ROBOFLOW_API_KEY"), "roboflow API key")
	flag.Float64Var(&threshold, "threshold", 0.4, "minimum confidence for a banknote to count (0..1)")

	flag.BoolVar(&overlay, "overlay", false, "write images with the detection boxes drawn")
	flag.StringVar(&dbgext, "dbgext", "png", "overlay format: png|jpg|webp")
	flag.IntVar(&dbgquality, "dbgquality", 92, "overlay quality (for jpg/webp)")
	flag.BoolVar(&dbglossless, "dbglossless", false, "overlay WebP lossless mode")

	flag.BoolVar(&crops, "crops", false, "write one image per counted banknote")
	flag.BoolVar(&audio, "audio", false, "write the spoken narration as MP3")
	flag.BoolVar(&debug, "debug", false, "log interpreter decisions")

	flag.Parse()
	if in == "" {
		log.Fatalf("usage: %s -in image.jpg|dir [-backend roboflow|ollama|llamacpp] [-url backend_url] [-threshold 0.4] [-out outdir] [-overlay] [-crops] [-audio]", filepath.Base(os.Args[0]))
	}
	if threshold < 0 || threshold > 1 {
		log.Fatalf("threshold must be between 0 and 1, got %.2f", threshold)
	}
	if err := utils.EnsureDir(outDir); err != nil {
		log.Fatal(err)
	}

	level := "info"
	if debug {
		level = "debug"
	}
	logger := logging.New(config.LogConfig{Level: level, Format: "text"}, os.Stderr)

	// Create appropriate client based on backend
	var detectionClient client.DetectionClient
	var err error

	switch backend {
	case config.BackendRoboflow:
		if url == "" {
			url = os.Getenv("ROBOFLOW_ENDPOINT")
		}
		detectionClient, err = roboflow.NewClient(roboflow.Config{Endpoint: url, APIKey: apiKey}, logger)
		if err != nil {
			log.Fatalf("Failed to create Roboflow client: %v", err)
		}
	case config.BackendOllama:
		if url == "" {
			url = "http://localhost:11434"
		}
		detectionClient, err = ollama.NewClient(url, model)
		if err != nil {
			log.Fatalf("Failed to create Ollama client: %v", err)
		}
	case config.BackendLlamaCPP:
		detectionClient, err = llamacpp.NewClient(url, model)
		if err != nil {
			log.Fatalf("Failed to create llama.cpp client: %v", err)
		}
	default:
		log.Fatalf("Unknown backend: %s (use 'roboflow', 'ollama' or 'llamacpp')\n", backend)
	}

	inputs := []string{in}
	if info, err := os.Stat(in); err == nil && info.IsDir() {
		inputs, err = utils.ListImageFiles(in)
		if err != nil {
			log.Fatal(err)
		}
		if len(inputs) == 0 {
			log.Fatalf("no images found in %s", in)
		}
	}

	a := &analyzer{
		processor:   processing.NewProcessor(),
		detector:    detection.NewDetector(detectionClient, logger),
		interpreter: interpreter.New(threshold, denomination.Default(), interpreter.WithLogger(logger)),
		outDir:      outDir,
	}
	if audio {
		a.tts = speech.NewGoogleTTS("", 0)
	}

	results := make(map[string]types.Result, len(inputs))
	for _, path := range inputs {
		result, dets, err := a.analyze(context.Background(), path)
		if err != nil {
			log.Printf("%s: %v", path, err)
			continue
		}
		results[filepath.Base(path)] = result
		log.Printf("%s: %s", filepath.Base(path), result.Text)

		if overlay {
			if err := a.writeOverlay(path, dets, dbgext, dbgquality, dbglossless); err != nil {
				log.Printf("overlay for %s failed: %v", path, err)
			}
		}
		if crops {
			if err := a.writeCrops(path, result.Detections, dbgext, dbgquality, dbglossless); err != nil {
				log.Printf("crops for %s failed: %v", path, err)
			}
		}
		if audio {
			if err := a.writeAudio(path, result.Text); err != nil {
				log.Printf("audio for %s failed: %v", path, err)
			}
		}
	}

	js, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(js))
	_ = os.WriteFile(filepath.Join(outDir, "results.json"), js, 0o644)
}

type analyzer struct {
	processor   *processing.Processor
	detector    *detection.Detector
	interpreter *interpreter.Interpreter
	tts         *speech.GoogleTTS
	outDir      string
}

// analyze returns the interpretation plus every detection, including those
// below the threshold, for the overlay.
func (a *analyzer) analyze(ctx context.Context, path string) (types.Result, []types.Detection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Result{}, nil, fmt.Errorf("failed to read image file: %w", err)
	}
	info, err := a.processor.Inspect(data)
	if err != nil {
		return types.Result{}, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	dets, err := a.detector.Detect(ctx, data, filepath.Base(path), info.Width, info.Height)
	if err != nil {
		return types.Result{}, nil, err
	}
	return a.interpreter.Interpret(dets), dets, nil
}

func (a *analyzer) writeOverlay(path string, dets []types.Detection, ext string, quality int, lossless bool) error {
	img, _, err := a.processor.LoadImage(path)
	if err != nil {
		return err
	}
	drawn := a.processor.DrawDetections(img, dets, denomination.Default())
	out := utils.OutputFilename(path, a.outDir, "_detections", ext)
	if err := a.processor.SaveImage(drawn, out, ext, quality, lossless); err != nil {
		return err
	}
	log.Printf("wrote %s", out)
	return nil
}

func (a *analyzer) writeCrops(path string, dets []types.Detection, ext string, quality int, lossless bool) error {
	if len(dets) == 0 {
		return nil
	}
	img, _, err := a.processor.LoadImage(path)
	if err != nil {
		return err
	}
	for i, d := range dets {
		crop, err := a.processor.CropDetection(img, d.BBox, 0.05)
		if err != nil {
			log.Printf("crop %d (%s) skipped: %v", i+1, d.Class, err)
			continue
		}
		suffix := fmt.Sprintf("_%02d_%s", i+1, utils.SanitizeFilename(d.Class))
		out := utils.OutputFilename(path, a.outDir, suffix, ext)
		if err := a.processor.SaveImage(crop, out, ext, quality, lossless); err != nil {
			return err
		}
		log.Printf("wrote %s", out)
	}
	return nil
}

func (a *analyzer) writeAudio(path, text string) error {
	data, err := a.tts.Synthesize(context.Background(), text, "es")
	if err != nil {
		return err
	}
	out := utils.OutputFilename(path, a.outDir, "_narration", "mp3")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %s (%s)", out, utils.FormatFileSize(int64(len(data))))
	return nil
}
