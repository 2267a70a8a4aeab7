package domain

import "fmt"

// Distance metrics supported by the index adapter.
const (
	MetricCosine = "cosine"
	MetricL2     = "l2"
)

// SimilarityConverter maps a raw index distance to a similarity in [0, 1].
type SimilarityConverter func(distance float64) float64

// ConverterForMetric returns the distance-to-similarity conversion for the
// given metric. Cosine distance is nominally in [0, 2] and maps as 1-d; L2 is
// unbounded and maps as 1/(1+d). Results are clamped to [0, 1] to guard
// against floating-point drift outside the metric's nominal range.
func ConverterForMetric(metric string) (SimilarityConverter, error) {
	switch metric {
	case MetricCosine:
		return func(d float64) float64 { return clamp01(1 - d) }, nil
	case MetricL2:
		return func(d float64) float64 { return clamp01(1 / (1 + d)) }, nil
	default:
		return nil, fmt.Errorf("unsupported distance metric %q", metric)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
