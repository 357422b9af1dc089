package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
			t.Errorf("Expected one message with text and image, got %+v", req.Messages)
		} else if url := req.Messages[0].Content[1].ImageURL.URL; !strings.HasPrefix(url, "data:image/png;base64,") {
			t.Errorf("Expected PNG data URL, got %.40s", url)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestPredictStringContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK,
		`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"predictions\":[{\"class\":\"S50\",\"confidence\":0.7}]}"}}]}`)
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	body, err := c.Predict(context.Background(), pngHeader, "x.png")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if string(body) != `{"predictions":[{"class":"S50","confidence":0.7}]}` {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestPredictArrayContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":[{"type":"text","text":"No banknotes here."}]}}]}`)
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	body, err := c.Predict(context.Background(), pngHeader, "")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if string(body) != `{"predictions":[]}` {
		t.Errorf("Expected empty predictions, got %s", body)
	}
}

func TestPredictErrors(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, `{"error":"model not loaded"}`)
	defer srv.Close()
	c, _ := NewClient(srv.URL, "")
	if _, err := c.Predict(context.Background(), pngHeader, ""); err == nil {
		t.Error("Expected error for HTTP 500")
	}

	empty := completionServer(t, http.StatusOK, `{"choices":[]}`)
	defer empty.Close()
	c, _ = NewClient(empty.URL, "")
	if _, err := c.Predict(context.Background(), pngHeader, ""); err == nil {
		t.Error("Expected error for a reply without choices")
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL != DefaultURL {
		t.Errorf("Expected default URL, got %s", c.baseURL)
	}
	if c.Name() != "llamacpp" {
		t.Errorf("Expected name llamacpp, got %s", c.Name())
	}
	if _, err := NewClient("localhost:8080", ""); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}
