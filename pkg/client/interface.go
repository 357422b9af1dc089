package client

import "context"

// DetectionClient sends an image to an object-detection backend and returns
// the raw JSON body, which carries a "predictions" array.
type DetectionClient interface {
	Predict(ctx context.Context, image []byte, filename string) ([]byte, error)
	Name() string
}
