package types

import (
	"bytes"
	"encoding/json"
)

// BBox is an absolute pixel bounding box ordered as left, top, right, bottom.
// It serializes as a four element JSON array.
type BBox [4]float64

// Left returns the left edge
func (b BBox) Left() float64 { return b[0] }

// Top returns the top edge
func (b BBox) Top() float64 { return b[1] }

// Right returns the right edge
func (b BBox) Right() float64 { return b[2] }

// Bottom returns the bottom edge
func (b BBox) Bottom() float64 { return b[3] }

// Width returns right minus left
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns bottom minus top
func (b BBox) Height() float64 { return b[3] - b[1] }

// Detection is a single prediction after coordinate normalization. The class
// label is kept exactly as the detection model reported it.
type Detection struct {
	Class      string          `json:"class"`
	Confidence float64         `json:"confidence"`
	BBox       BBox            `json:"bbox"`
	Original   json.RawMessage `json:"original_pred,omitempty"`
}

// Group holds the detections that share one raw class label
type Group struct {
	Class      string      `json:"class"`
	Detections []Detection `json:"detections"`
}

// Count returns the number of detections in the group
func (g Group) Count() int { return len(g.Detections) }

// Groups is the raw-label grouping of a result. It serializes as a JSON
// object keyed by class label, keys in first-occurrence order.
type Groups []Group

// MarshalJSON writes the groups as {"<class>": [detections...], ...}
func (gs Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range gs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(g.Class)
		if err != nil {
			return nil, err
		}
		dets := g.Detections
		if dets == nil {
			dets = []Detection{}
		}
		val, err := json.Marshal(dets)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the outcome of interpreting one image's detections
type Result struct {
	OK            bool        `json:"ok"`
	Text          string      `json:"text"`
	TotalAmount   int         `json:"total_amount"`
	Detections    []Detection `json:"detections"`
	Groups        Groups      `json:"grouped_detections"`
	MainDetection *Detection  `json:"main_detection,omitempty"`
}

// PredictionResponse is the body returned by the prediction endpoint
type PredictionResponse struct {
	OK          bool        `json:"ok"`
	Text        string      `json:"text"`
	AudioURL    string      `json:"audio_url"`
	Detections  []Detection `json:"detections"`
	TotalAmount int         `json:"total_amount"`
	AudioBase64 string      `json:"audio_base64,omitempty"`
}
