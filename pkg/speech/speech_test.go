package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSynth struct {
	calls int32
	lang  string
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lang = lang
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3:" + text), nil
}

func newService(t *testing.T, synth Synthesizer, cacheSize int) *Service {
	t.Helper()
	s, err := NewService(synth, Options{
		Dir:       filepath.Join(t.TempDir(), "audio"),
		BaseURL:   "http://localhost:8000/",
		TTL:       time.Hour,
		CacheSize: cacheSize,
	}, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return s
}

func TestSpeakWritesFileAndURL(t *testing.T) {
	synth := &fakeSynth{}
	s := newService(t, synth, 0)

	audio, err := s.Speak(context.Background(), "Se detectó 1 billete de 10 soles")
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	if !strings.HasSuffix(audio.Filename, ".mp3") {
		t.Errorf("Expected .mp3 file, got %s", audio.Filename)
	}
	if audio.URL != "http://localhost:8000/static/audio/"+audio.Filename {
		t.Errorf("Unexpected URL %s", audio.URL)
	}
	data, err := os.ReadFile(audio.Path)
	if err != nil {
		t.Fatalf("Audio file missing: %v", err)
	}
	if string(data) != "mp3:Se detectó 1 billete de 10 soles" {
		t.Errorf("Unexpected audio content %q", data)
	}
	if synth.lang != "es" {
		t.Errorf("Expected default language es, got %s", synth.lang)
	}

	b64 := s.Base64(audio.Path)
	decoded, _ := base64.StdEncoding.DecodeString(b64)
	if string(decoded) != string(data) {
		t.Error("Base64 does not round-trip the audio file")
	}
	if s.Base64(filepath.Join(s.Dir(), "missing.mp3")) != "" {
		t.Error("Expected empty base64 for a missing file")
	}
}

func TestSpeakCachesRepeatedText(t *testing.T) {
	synth := &fakeSynth{}
	s := newService(t, synth, 8)

	first, err := s.Speak(context.Background(), "hola")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Speak(context.Background(), "hola")
	if err != nil {
		t.Fatal(err)
	}

	if first.Filename != second.Filename {
		t.Errorf("Expected cached file reuse, got %s and %s", first.Filename, second.Filename)
	}
	if atomic.LoadInt32(&synth.calls) != 1 {
		t.Errorf("Expected a single synthesis, got %d", synth.calls)
	}

	// A deleted file is synthesized again.
	os.Remove(first.Path)
	third, err := s.Speak(context.Background(), "hola")
	if err != nil {
		t.Fatal(err)
	}
	if third.Filename == first.Filename {
		t.Error("Expected a new file after the cached one was removed")
	}
}

func TestSpeakSynthesisError(t *testing.T) {
	sentinel := errors.New("tts down")
	s := newService(t, &fakeSynth{err: sentinel}, 0)

	if _, err := s.Speak(context.Background(), "hola"); !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped synthesis error, got %v", err)
	}
}

func TestCleanupRemovesOldFiles(t *testing.T) {
	s := newService(t, &fakeSynth{}, 0)

	oldPath := filepath.Join(s.Dir(), "old.mp3")
	newPath := filepath.Join(s.Dir(), "new.mp3")
	for _, p := range []string{oldPath, newPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Cleanup()
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("Expected old file to be removed")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("Expected recent file to be kept")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	s := newService(t, &fakeSynth{}, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, Options{Dir: t.TempDir(), TTL: time.Hour}, nil); err == nil {
		t.Error("Expected error without synthesizer")
	}
	if _, err := NewService(&fakeSynth{}, Options{TTL: time.Hour}, nil); err == nil {
		t.Error("Expected error without directory")
	}
	if _, err := NewService(&fakeSynth{}, Options{Dir: t.TempDir()}, nil); err == nil {
		t.Error("Expected error without TTL")
	}
}

func TestGoogleTTSSynthesize(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tl") != "es" || q.Get("client") != "tw-ob" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		requests = append(requests, q.Get("q"))
		w.Write([]byte("[" + q.Get("idx") + "]"))
	}))
	defer srv.Close()

	g := NewGoogleTTS(srv.URL, time.Second)
	text := strings.Repeat("billete ", 30)

	data, err := g.Synthesize(context.Background(), text, "es")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(requests) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(requests))
	}
	if string(data) != "[0][1][2]" {
		t.Errorf("Expected concatenated segments, got %q", data)
	}
}

func TestGoogleTTSError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGoogleTTS(srv.URL, time.Second)
	if _, err := g.Synthesize(context.Background(), "hola", "es"); err == nil {
		t.Error("Expected error for non-200 response")
	}
	if _, err := g.Synthesize(context.Background(), "   ", "es"); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestSplitText(t *testing.T) {
	chunks := splitText("Se detectaron billetes: 2 de 10, 1 de 50. Total: 70 soles", 100)
	if len(chunks) != 1 {
		t.Errorf("Expected a single chunk, got %v", chunks)
	}

	long := strings.Repeat("a", 250)
	chunks = splitText("x "+long, 100)
	if len(chunks) != 4 {
		t.Fatalf("Expected 4 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Errorf("Chunk exceeds limit: %d", len([]rune(c)))
		}
	}

	chunks = splitText(strings.Repeat("ññññ ", 40), 100)
	for _, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Errorf("Chunk exceeds limit in runes: %d", len([]rune(c)))
		}
	}
}
