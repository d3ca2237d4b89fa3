package pipeline

import (
	"math"
	"testing"
)

func TestResampleNoopWhenRatesMatch(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("expected passthrough, got len %d", len(out))
	}
}

func TestResampleDownsamplesLength(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.01))
	}
	out := Resample(in, 48000, 16000)
	wantLen := len(in) / 3
	tolerance := 4
	if diff := wantLen - len(out); diff < -tolerance || diff > tolerance {
		t.Fatalf("expected output length near %d, got %d", wantLen, len(out))
	}
}

func TestResampleEmptyInput(t *testing.T) {
	out := Resample(nil, 48000, 16000)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d samples", len(out))
	}
}
