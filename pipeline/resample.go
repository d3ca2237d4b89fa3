package pipeline

import (
	"gonum.org/v1/gonum/floats"
)

// Resample converts samples from one sample rate to another with a
// moving-average low-pass pre-filter sized to target a cutoff of
// Nyquist*0.4, followed by linear-interpolation downsampling. This is the
// scheme §4.4 names for feeding the 16 kHz streaming VAD and §4.6 names for
// bringing both recorded channels to a common rate before mixing.
func Resample(samples []float32, fromRateHz, toRateHz uint32) []float32 {
	if fromRateHz == toRateHz || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRateHz) / float64(toRateHz)
	outputLen := int(float64(len(samples)) / ratio)

	filtered := lowPassFilter(samples, fromRateHz)

	resampled := make([]float32, 0, outputLen)
	for i := 0; i < outputLen; i++ {
		sourcePos := float64(i) * ratio
		sourceIndex := int(sourcePos)
		fraction := float32(sourcePos - float64(sourceIndex))

		switch {
		case sourceIndex+1 < len(filtered):
			s1, s2 := filtered[sourceIndex], filtered[sourceIndex+1]
			resampled = append(resampled, s1+(s2-s1)*fraction)
		case sourceIndex < len(filtered):
			resampled = append(resampled, filtered[sourceIndex])
		}
	}
	return resampled
}

// lowPassFilter is a moving-average pre-filter; filter_size is derived from
// a 0.4*Nyquist cutoff target and clamped to [1, 5] as the original does.
func lowPassFilter(samples []float32, sampleRateHz uint32) []float32 {
	const cutoffFreq = 0.4
	filterSize := int(float64(sampleRateHz) / (cutoffFreq * float64(sampleRateHz)))
	if filterSize < 1 {
		filterSize = 1
	}
	if filterSize > 5 {
		filterSize = 5
	}

	out := make([]float32, len(samples))
	window := make([]float64, 0, 2*filterSize+1)
	for i := range samples {
		start := i - filterSize
		if start < 0 {
			start = 0
		}
		end := i + filterSize + 1
		if end > len(samples) {
			end = len(samples)
		}

		window = window[:0]
		for _, v := range samples[start:end] {
			window = append(window, float64(v))
		}
		out[i] = float32(floats.Sum(window) / float64(len(window)))
	}
	return out
}
