// Package server exposes the banknote assistant over HTTP.
package server

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	banknoteassistant "github.com/menta2k/banknote-assistant"
	"github.com/menta2k/banknote-assistant/internal/logging"
	"github.com/menta2k/banknote-assistant/pkg/speech"
)

// DefaultMaxUploadBytes bounds the uploaded image of a prediction request
const DefaultMaxUploadBytes = 10 << 20

// multipartOverhead is the allowance for form boundaries, part headers and
// extra fields on top of the image itself.
const multipartOverhead = 1 << 20

// Options configures the HTTP surface
type Options struct {
	// APIKey enables bearer authentication on the prediction endpoint.
	// Empty disables it.
	APIKey             string
	AllowedOrigins     []string
	MaxUploadBytes     int64
	RoboflowConfigured bool
	// AudioDir is served under /static/audio/
	AudioDir string
}

// Server routes requests to the assistant
type Server struct {
	assistant *banknoteassistant.Assistant
	opts      Options
	logger    *slog.Logger
	handler   http.Handler
}

// New creates a server. A nil logger discards output.
func New(assistant *banknoteassistant.Assistant, opts Options, logger *slog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{assistant: assistant, opts: opts, logger: logger}

	r := mux.NewRouter()
	r.Use(s.requestLogger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Handle("/predict", s.requireAPIKey(http.HandlerFunc(s.handlePredict))).Methods(http.MethodPost)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	if opts.AudioDir != "" {
		files := http.StripPrefix(speech.AudioPath, http.FileServer(audioFS{http.Dir(opts.AudioDir)}))
		r.PathPrefix(speech.AudioPath).Handler(files).Methods(http.MethodGet, http.MethodHead)
	}

	// CORS wraps the router so preflight requests never reach method matching.
	s.handler = s.cors(r)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// audioFS serves generated files only. Directories report not found so the
// audio directory is never listed.
type audioFS struct {
	http.FileSystem
}

func (a audioFS) Open(name string) (http.File, error) {
	f, err := a.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
