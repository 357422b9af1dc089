package detection

import (
	"context"
	"errors"
	"testing"
)

type fakeClient struct {
	body     []byte
	err      error
	filename string
}

func (f *fakeClient) Predict(_ context.Context, _ []byte, filename string) ([]byte, error) {
	f.filename = filename
	return f.body, f.err
}

func (f *fakeClient) Name() string { return "fake" }

func TestDetectNormalizesBody(t *testing.T) {
	fc := &fakeClient{body: []byte(`{"predictions":[{"class":"S20","confidence":0.9,"x":0.5,"y":0.5,"width":0.5,"height":0.5}]}`)}
	d := NewDetector(fc, nil)

	dets, err := d.Detect(context.Background(), []byte("img"), "bill.jpg", 200, 100)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(dets))
	}
	assertBox(t, dets[0].BBox, [4]float64{50, 25, 150, 75})

	if fc.filename != "bill.jpg" {
		t.Errorf("Expected filename to be forwarded, got %q", fc.filename)
	}
	if d.Backend() != "fake" {
		t.Errorf("Expected backend fake, got %s", d.Backend())
	}
}

func TestDetectPropagatesClientError(t *testing.T) {
	sentinel := errors.New("unreachable")
	d := NewDetector(&fakeClient{err: sentinel}, nil)

	_, err := d.Detect(context.Background(), []byte("img"), "x.jpg", 10, 10)
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped client error, got %v", err)
	}
}

func TestDetectEmptyPredictionsIsNotAnError(t *testing.T) {
	d := NewDetector(&fakeClient{body: []byte(`{"predictions":[]}`)}, nil)

	dets, err := d.Detect(context.Background(), []byte("img"), "x.jpg", 10, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("Expected no detections, got %d", len(dets))
	}
}
