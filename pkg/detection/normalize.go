package detection

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/menta2k/banknote-assistant/pkg/types"
)

// Normalize converts a raw detection API body into detections with absolute
// pixel boxes. It never fails: a missing or malformed "predictions" array
// yields no detections, and missing fields read as "" or 0.
//
// Known limitation: the API does not say whether coordinates are fractions
// of the image or pixels. When x, y, width and height are all <= 1 they are
// treated as fractions and scaled by the image size, so a genuinely tiny
// pixel box (say width=1px) is misread as normalized. Keep the rule as is
// until the model's coordinate convention is confirmed.
func Normalize(raw []byte, width, height int) []types.Detection {
	preds := gjson.GetBytes(raw, "predictions")
	if !preds.IsArray() {
		return []types.Detection{}
	}

	items := preds.Array()
	out := make([]types.Detection, 0, len(items))
	for _, p := range items {
		out = append(out, normalizeOne(p, float64(width), float64(height)))
	}
	return out
}

func normalizeOne(p gjson.Result, imgW, imgH float64) types.Detection {
	x := p.Get("x").Float()
	y := p.Get("y").Float()
	w := p.Get("width").Float()
	h := p.Get("height").Float()

	if isNormalized(x, y, w, h) {
		x *= imgW
		w *= imgW
		y *= imgH
		h *= imgH
	}

	d := types.Detection{
		Class:      p.Get("class").String(),
		Confidence: p.Get("confidence").Float(),
		BBox:       centerToBox(x, y, w, h),
	}
	if p.Raw != "" && json.Valid([]byte(p.Raw)) {
		d.Original = json.RawMessage(p.Raw)
	}
	return d
}

func isNormalized(x, y, w, h float64) bool {
	return x <= 1 && y <= 1 && w <= 1 && h <= 1
}

// centerToBox converts center+size to edges. No clamping to image bounds.
func centerToBox(cx, cy, w, h float64) types.BBox {
	return types.BBox{
		cx - w/2,
		cy - h/2,
		cx + w/2,
		cy + h/2,
	}
}
