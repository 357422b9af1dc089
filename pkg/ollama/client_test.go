package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("Expected model test-model, got %v", req["model"])
		}

		resp := map[string]any{
			"model":   "test-model",
			"message": map[string]any{"role": "assistant", "content": content},
			"done":    true,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestPredictReturnsPredictionsDocument(t *testing.T) {
	srv := chatServer(t, "```json\n{\"predictions\":[{\"class\":\"S20\",\"confidence\":0.8,\"x\":0.5,\"y\":0.5,\"width\":0.4,\"height\":0.2},]}\n```")
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/chat", "test-model")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	body, err := c.Predict(context.Background(), []byte{0xff, 0xd8}, "x.jpg")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	var doc struct {
		Predictions []struct {
			Class string `json:"class"`
		} `json:"predictions"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("Body is not valid JSON: %v (%s)", err, body)
	}
	if len(doc.Predictions) != 1 || doc.Predictions[0].Class != "S20" {
		t.Errorf("Unexpected predictions: %s", body)
	}
}

func TestPredictNonJSONReplyIsEmpty(t *testing.T) {
	srv := chatServer(t, "I can see a banknote on a table.")
	defer srv.Close()

	c, _ := NewClient(srv.URL, "test-model")
	body, err := c.Predict(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if string(body) != `{"predictions":[]}` {
		t.Errorf("Expected empty predictions, got %s", body)
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient("not a url", ""); err == nil {
		t.Error("Expected error for invalid URL")
	}

	c, err := NewClient("http://localhost:11434/api/chat", "")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.model != DefaultModel {
		t.Errorf("Expected default model, got %s", c.model)
	}
	if c.Name() != "ollama" {
		t.Errorf("Expected name ollama, got %s", c.Name())
	}
}
