package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	banknoteassistant "github.com/menta2k/banknote-assistant"
	"github.com/menta2k/banknote-assistant/internal/utils"
)

// ErrorResponse is the body of every non-2xx reply. Detail carries the
// human-readable reason clients display.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// HealthResponse reports service readiness
type HealthResponse struct {
	Status              string  `json:"status"`
	RoboflowConfigured  bool    `json:"roboflow_configured"`
	DetectionBackend    string  `json:"detection_backend"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// RootResponse describes the service
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendTooLarge(w)
			return
		}
		sendErrorResponse(w, "missing_file", "Multipart form with a file field is required", err.Error(), http.StatusUnprocessableEntity)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		sendErrorResponse(w, "missing_file", "Field 'file' is required", err.Error(), http.StatusUnprocessableEntity)
		return
	}
	defer file.Close()

	if header.Size > s.opts.MaxUploadBytes {
		sendTooLarge(w)
		return
	}

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		sendErrorResponse(w, "invalid_file_type", "Uploaded file is not an image",
			"El archivo debe ser una imagen", http.StatusBadRequest)
		return
	}

	includeBase64 := false
	if v := r.FormValue("include_base64"); v != "" {
		includeBase64, err = strconv.ParseBool(v)
		if err != nil {
			sendErrorResponse(w, "invalid_request", "include_base64 must be a boolean", err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		sendErrorResponse(w, "invalid_request", "Failed to read upload", err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.assistant.Describe(r.Context(), banknoteassistant.Request{
		Image:         data,
		Filename:      utils.SanitizeFilename(header.Filename),
		IncludeBase64: includeBase64,
	})
	if err != nil {
		logger.Error("prediction failed", "filename", header.Filename, "error", err)
		switch {
		case errors.Is(err, banknoteassistant.ErrInvalidImage):
			sendErrorResponse(w, "invalid_image", "Failed to decode image",
				"No se pudo leer la imagen: "+err.Error(), http.StatusBadRequest)
		case errors.Is(err, banknoteassistant.ErrDetectionFailed):
			sendErrorResponse(w, "detection_unavailable", "Detection backend unavailable",
				"Error procesando imagen: "+err.Error(), http.StatusBadGateway)
		default:
			sendErrorResponse(w, "processing_error", "Failed to process image",
				"Error procesando imagen: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	logger.Info("prediction served",
		"filename", header.Filename,
		"size", utils.FormatFileSize(int64(len(data))),
		"total_amount", resp.TotalAmount)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:              "healthy",
		RoboflowConfigured:  s.opts.RoboflowConfigured,
		DetectionBackend:    s.assistant.Backend(),
		ConfidenceThreshold: s.assistant.Threshold(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Message: "Asistente Visual de Billetes Peruanos",
		Version: banknoteassistant.Version,
		Docs:    "/docs",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, code, message, detail string, status int) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

func sendTooLarge(w http.ResponseWriter) {
	sendErrorResponse(w, "file_too_large", "Upload too large",
		"La imagen supera el tamaño máximo permitido", http.StatusRequestEntityTooLarge)
}
