// Package speech turns narrated text into audio files served over HTTP.
package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/menta2k/banknote-assistant/internal/logging"
	"github.com/menta2k/banknote-assistant/internal/utils"
)

// AudioPath is the URL prefix audio files are served under
const AudioPath = "/static/audio/"

// Options configures a Service
type Options struct {
	Dir       string
	BaseURL   string
	Language  string
	TTL       time.Duration
	CacheSize int
}

// Audio is a synthesized file and its public URL
type Audio struct {
	Path     string
	Filename string
	URL      string
}

// Service stores synthesized narration and expires old files
type Service struct {
	synth  Synthesizer
	opts   Options
	cache  *expirable.LRU[string, string]
	logger *slog.Logger
}

// NewService creates the audio directory and a service around synth.
// A CacheSize of zero disables reuse of audio for repeated text.
func NewService(synth Synthesizer, opts Options, logger *slog.Logger) (*Service, error) {
	if synth == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("audio directory is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("audio TTL must be positive")
	}
	if opts.Language == "" {
		opts.Language = "es"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if logger == nil {
		logger = logging.Discard()
	}

	if err := utils.EnsureDir(opts.Dir); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	s := &Service{synth: synth, opts: opts, logger: logger}
	if opts.CacheSize > 0 {
		// Half the file TTL, so a cached file is never older than the cleanup cutoff.
		s.cache = expirable.NewLRU[string, string](opts.CacheSize, nil, opts.TTL/2)
	}
	return s, nil
}

// Dir returns the directory audio files are written to
func (s *Service) Dir() string {
	return s.opts.Dir
}

// Speak synthesizes text into a new MP3 file, or reuses a recent file for
// the same text.
func (s *Service) Speak(ctx context.Context, text string) (*Audio, error) {
	if s.cache != nil {
		if name, ok := s.cache.Get(text); ok {
			path := filepath.Join(s.opts.Dir, name)
			if utils.FileExists(path) {
				s.logger.Debug("audio cache hit", "file", name)
				return s.audio(name), nil
			}
			s.cache.Remove(text)
		}
	}

	data, err := s.synth.Synthesize(ctx, text, s.opts.Language)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	name := uuid.NewString() + ".mp3"
	path := filepath.Join(s.opts.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	if s.cache != nil {
		s.cache.Add(text, name)
	}
	s.logger.Info("audio generated", "file", name, "size", utils.FormatFileSize(int64(len(data))))
	return s.audio(name), nil
}

func (s *Service) audio(name string) *Audio {
	return &Audio{
		Path:     filepath.Join(s.opts.Dir, name),
		Filename: name,
		URL:      s.opts.BaseURL + AudioPath + name,
	}
}

// Base64 returns the file content base64-encoded, or "" if it cannot be read
func (s *Service) Base64(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error("failed to read audio for base64", "path", path, "error", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Cleanup deletes audio files older than the TTL and returns how many were
// removed.
func (s *Service) Cleanup() (int, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list audio directory: %w", err)
	}

	cutoff := time.Now().Add(-s.opts.TTL)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.opts.Dir, e.Name())); err != nil {
				s.logger.Error("failed to remove old audio", "file", e.Name(), "error", err)
				continue
			}
			removed++
			s.logger.Info("old audio removed", "file", e.Name())
		}
	}
	return removed, nil
}

// Run calls Cleanup every interval until ctx is done
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(); err != nil {
				s.logger.Error("audio cleanup failed", "error", err)
			}
		}
	}
}
