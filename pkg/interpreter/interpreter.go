// Package interpreter turns normalized detections into a banknote count, a
// total amount and a spoken-style sentence.
package interpreter

import (
	"log/slog"

	"github.com/menta2k/banknote-assistant/internal/logging"
	"github.com/menta2k/banknote-assistant/pkg/denomination"
	"github.com/menta2k/banknote-assistant/pkg/types"
)

// Interpreter filters detections by confidence, groups them by raw label and
// narrates the result. It holds no per-call state and is safe for concurrent
// use.
type Interpreter struct {
	threshold float64
	resolver  *denomination.Resolver
	logger    *slog.Logger
}

// Option configures an Interpreter
type Option func(*Interpreter)

// WithLogger sets the logger used for debug tracing
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// New creates an Interpreter. A nil resolver uses denomination.Default().
func New(threshold float64, resolver *denomination.Resolver, opts ...Option) *Interpreter {
	if resolver == nil {
		resolver = denomination.Default()
	}
	in := &Interpreter{
		threshold: threshold,
		resolver:  resolver,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Threshold returns the minimum confidence a detection needs to be counted
func (in *Interpreter) Threshold() float64 {
	return in.threshold
}

// Interpret runs filter, group, total and narrate over the detections. It
// never fails; bad or unknown data simply contributes nothing.
func (in *Interpreter) Interpret(dets []types.Detection) types.Result {
	valid := Filter(dets, in.threshold)
	in.logger.Debug("detections filtered",
		"received", len(dets),
		"valid", len(valid),
		"threshold", in.threshold)

	if len(valid) == 0 {
		return types.Result{
			OK:          false,
			Text:        NoBanknoteText,
			TotalAmount: 0,
			Detections:  []types.Detection{},
			Groups:      []types.Group{},
		}
	}

	groups := Group(valid)
	counts := Counts(groups, in.resolver)
	total := Total(counts)

	for _, g := range groups {
		if _, ok := in.resolver.Resolve(g.Class); !ok {
			in.logger.Debug("unrecognized class label", "class", g.Class, "count", g.Count())
		}
	}

	text := Narrate(counts, total)
	in.logger.Debug("detections interpreted", "groups", len(groups), "total", total, "text", text)

	return types.Result{
		OK:            true,
		Text:          text,
		TotalAmount:   total,
		Detections:    valid,
		Groups:        groups,
		MainDetection: MainDetection(valid),
	}
}

// Filter keeps detections with confidence >= threshold, in input order
func Filter(dets []types.Detection, threshold float64) []types.Detection {
	out := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// Group buckets detections by exact raw class label. Groups appear in order
// of each label's first occurrence.
func Group(dets []types.Detection) []types.Group {
	index := make(map[string]int)
	groups := make([]types.Group, 0)
	for _, d := range dets {
		i, ok := index[d.Class]
		if !ok {
			i = len(groups)
			index[d.Class] = i
			groups = append(groups, types.Group{Class: d.Class})
		}
		groups[i].Detections = append(groups[i].Detections, d)
	}
	return groups
}

// Counts returns how many banknotes of each denomination the groups hold.
// Labels that resolve to the same value are added together; unresolved
// labels are skipped.
func Counts(groups []types.Group, resolver *denomination.Resolver) map[int]int {
	counts := make(map[int]int)
	for _, g := range groups {
		v, ok := resolver.Resolve(g.Class)
		if !ok {
			continue
		}
		counts[v] += g.Count()
	}
	return counts
}

// Total sums value x count over the denomination counts
func Total(counts map[int]int) int {
	total := 0
	for v, n := range counts {
		total += v * n
	}
	return total
}

// MainDetection returns the highest-confidence detection. Ties go to the
// earliest one. It returns nil for an empty slice.
func MainDetection(dets []types.Detection) *types.Detection {
	if len(dets) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(dets); i++ {
		if dets[i].Confidence > dets[best].Confidence {
			best = i
		}
	}
	main := dets[best]
	return &main
}
