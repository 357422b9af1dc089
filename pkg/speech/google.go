package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultGoogleEndpoint is the Translate text-to-speech endpoint
	DefaultGoogleEndpoint = "https://translate.google.com/translate_tts"
	maxChunkLen           = 100
)

// Synthesizer converts text into MP3 audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// GoogleTTS speaks through the Google Translate TTS endpoint. Text longer
// than the endpoint's 100 character limit is split on word boundaries and the
// MP3 segments are concatenated.
type GoogleTTS struct {
	endpoint   string
	httpClient *http.Client
}

// NewGoogleTTS creates a synthesizer. An empty endpoint uses
// DefaultGoogleEndpoint.
func NewGoogleTTS(endpoint string, timeout time.Duration) *GoogleTTS {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleTTS{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Synthesize returns the MP3 audio for text
func (g *GoogleTTS) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	chunks := splitText(text, maxChunkLen)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to speak")
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		data, err := g.fetch(ctx, chunk, lang, i, len(chunks))
		if err != nil {
			return nil, err
		}
		audio.Write(data)
	}
	return audio.Bytes(), nil
}

func (g *GoogleTTS) fetch(ctx context.Context, chunk, lang string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", chunk)
	q.Set("total", fmt.Sprint(total))
	q.Set("idx", fmt.Sprint(idx))
	q.Set("textlen", fmt.Sprint(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (banknote-assistant)")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts request failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	return data, nil
}

// splitText breaks text into chunks of at most limit runes, preferring
// word boundaries. Words longer than limit are cut.
func splitText(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(runes) == 0 {
			continue
		}

		n := len(runes)
		if curLen > 0 && curLen+1+n > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(string(runes))
		curLen += n
	}
	flush()

	return chunks
}
