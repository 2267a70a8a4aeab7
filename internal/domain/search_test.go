package domain

import (
	"errors"
	"math"
	"testing"
)

func defaultBounds() Bounds {
	return Bounds{MinTopK: 1, MaxTopK: 20, DefaultTopK: 5, DefaultThreshold: 0.3}
}

func TestClampTopK(t *testing.T) {
	b := defaultBounds()

	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-3, 1},
		{1, 1},
		{5, 5},
		{20, 20},
		{21, 20},
		{1000, 20},
	}
	for _, tc := range tests {
		if got := b.ClampTopK(tc.in); got != tc.want {
			t.Errorf("ClampTopK(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestClampThreshold(t *testing.T) {
	b := defaultBounds()

	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.3, 0.3},
		{1, 1},
		{1.5, 1},
	}
	for _, tc := range tests {
		if got := b.ClampThreshold(tc.in); got != tc.want {
			t.Errorf("ClampThreshold(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestConverterForMetric_Cosine(t *testing.T) {
	conv, err := ConverterForMetric(MetricCosine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		distance, want float64
	}{
		{0, 1},
		{0.25, 0.75},
		{1, 0},
		{1.7, 0},  // cosine distance beyond 1 clamps to zero similarity
		{-0.1, 1}, // float drift below zero clamps to one
	}
	for _, tc := range tests {
		if got := conv(tc.distance); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("cosine(%v) = %v, want %v", tc.distance, got, tc.want)
		}
	}
}

func TestConverterForMetric_L2(t *testing.T) {
	conv, err := ConverterForMetric(MetricL2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := conv(0); got != 1 {
		t.Errorf("l2(0) = %v, want 1", got)
	}
	if got := conv(3); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("l2(3) = %v, want 0.25", got)
	}
}

func TestConverterForMetric_Unknown(t *testing.T) {
	if _, err := ConverterForMetric("dot"); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestRecordError_Unwrap(t *testing.T) {
	err := NewRecordError("42", ErrEmbeddingService)

	if !errors.Is(err, ErrEmbeddingService) {
		t.Error("expected errors.Is to see the wrapped sentinel")
	}

	var recErr *RecordError
	if !errors.As(err, &recErr) {
		t.Fatal("expected RecordError")
	}
	if recErr.RecordID != "42" {
		t.Errorf("expected record id 42, got %s", recErr.RecordID)
	}
}

func TestMetadataIsChunk(t *testing.T) {
	if (Metadata{}).IsChunk() {
		t.Error("plain record must not be a chunk")
	}
	if !(Metadata{ChunkIndex: 0, TotalChunks: 2}).IsChunk() {
		t.Error("record with TotalChunks set must be a chunk")
	}
}
