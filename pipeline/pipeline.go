// Package pipeline implements the VAD-driven audio accumulator that turns
// a stream of small capture chunks into transcription-sized segments.
package pipeline

import (
	"log"
	"math"
	"time"

	"meetcore/audio"
)

const (
	receiveTimeout   = 50 * time.Millisecond
	evaluateEveryN   = 8
	vadSampleRateHz  = 16000
	silenceRMS       = 0.005
	silencePeak      = 0.01
	zcrThreshold     = 0.02
)

// Dispatcher is the consumer of transcription-sized chunks: the
// transcription dispatcher in normal operation, a fake in tests.
type Dispatcher interface {
	Dispatch(audio.AudioChunk) error
}

// Config bundles the tier-derived bounds and the VAD the pipeline will
// drive.
type Config struct {
	Bounds TierBounds
	VAD    *StreamingVAD // nil falls back to the energy-based diagnostic detector
}

// Pipeline is the single consumer of all capture chunks (interleaved
// across devices). It owns one accumulation buffer, appends verbatim from
// every incoming chunk regardless of source device, and dispatches
// transcription-sized segments on the criteria of §4.4.
type Pipeline struct {
	config Config
	state  *audio.RecordingState
	input  <-chan audio.AudioChunk
	out    Dispatcher

	accumulated      []float32
	accumulatedStart float64
	accumulatedRate  uint32
	lastDispatch     time.Time
	chunksSinceEval  int
	nextDispatchID   uint64

	diagnosticRegions []SpeechRegion
}

func New(config Config, state *audio.RecordingState, input <-chan audio.AudioChunk, out Dispatcher) *Pipeline {
	return &Pipeline{
		config:       config,
		state:        state,
		input:        input,
		out:          out,
		lastDispatch: time.Now(),
	}
}

// Diagnostics returns the speech regions the configured VAD (the streaming
// VAD, or the energy detector when none is set) has surfaced so far. These are never substituted into the dispatch buffer (§4.4 step 2,
// §9 open question 3); they exist purely for introspection.
func (p *Pipeline) Diagnostics() []SpeechRegion {
	return p.diagnosticRegions
}

// Run drives the inner loop until input closes, then performs the final
// flush. It is meant to be launched as a goroutine by the recording
// manager.
func (p *Pipeline) Run() {
	for {
		select {
		case chunk, ok := <-p.input:
			if !ok {
				p.flushRemaining()
				return
			}
			p.handleChunk(chunk)
		case <-time.After(receiveTimeout):
			p.evaluateDispatch()
		}
	}
}

func (p *Pipeline) handleChunk(chunk audio.AudioChunk) {
	if chunk.IsFlushSentinel() {
		p.dispatchNow(true)
		return
	}

	p.feedVAD(chunk)

	if len(p.accumulated) == 0 {
		p.accumulatedStart = chunk.TimestampSecs
		p.accumulatedRate = chunk.SampleRateHz
	}
	p.accumulated = append(p.accumulated, chunk.Data...)

	p.chunksSinceEval++
	if p.chunksSinceEval >= evaluateEveryN {
		p.chunksSinceEval = 0
		p.evaluateDispatch()
	}
}

// feedVAD resamples to 16kHz mono if needed and feeds whichever VAD is
// configured, collecting diagnostic-only speech regions. When no neural
// StreamingVAD is configured it falls back to the energy-based detector
// (§9 open question 3: a VAD-segmented view, never substituted into the
// dispatch buffer).
func (p *Pipeline) feedVAD(chunk audio.AudioChunk) {
	if chunk.IsFlushSentinel() {
		return
	}
	data := chunk.Data
	if chunk.SampleRateHz != vadSampleRateHz {
		data = Resample(data, chunk.SampleRateHz, vadSampleRateHz)
	}
	baseMs := int64(chunk.TimestampSecs * 1000)

	if p.config.VAD == nil {
		for _, r := range DetectSpeechRegions(data, vadSampleRateHz) {
			p.diagnosticRegions = append(p.diagnosticRegions, SpeechRegion{
				StartMs: baseMs + r.StartMs,
				EndMs:   baseMs + r.EndMs,
			})
		}
		return
	}

	regions, err := p.config.VAD.FeedAndSegment(data, baseMs)
	if err != nil {
		log.Printf("pipeline: streaming VAD feed failed: %v", err)
		return
	}
	p.diagnosticRegions = append(p.diagnosticRegions, regions...)
}

// evaluateDispatch implements §4.4 step 4: dispatch when accumulated
// duration has reached min_ms, or force dispatch at max_ms regardless.
func (p *Pipeline) evaluateDispatch() {
	if len(p.accumulated) == 0 {
		return
	}
	durationMs := accumulatedDurationMs(p.accumulated, p.accumulatedRate)
	elapsedSinceDispatch := time.Since(p.lastDispatch)

	if durationMs >= int64(p.config.Bounds.MinMs) || elapsedSinceDispatch >= time.Duration(p.config.Bounds.MaxMs)*time.Millisecond {
		p.dispatchNow(false)
	}
}

func accumulatedDurationMs(samples []float32, sampleRateHz uint32) int64 {
	if sampleRateHz == 0 {
		return 0
	}
	return int64(len(samples)) * 1000 / int64(sampleRateHz)
}

// dispatchNow applies the dispatch gate (§4.4) and sends the accumulated
// buffer if it survives. force is true for flushes (flush sentinel, input
// close); the min_ms/max_ms criteria are applied by evaluateDispatch, not
// here. The paused check and the silence/ZCR gates apply to every
// dispatch, flushes included: while paused the buffer is kept.
func (p *Pipeline) dispatchNow(force bool) {
	if len(p.accumulated) == 0 {
		return
	}
	if p.state != nil && p.state.IsPaused() {
		return
	}

	buf := p.accumulated
	start := p.accumulatedStart
	rate := p.accumulatedRate
	p.accumulated = nil
	p.lastDispatch = time.Now()

	rms, peak := bufferRMSPeak(buf)
	if rms < silenceRMS && peak < silencePeak {
		return
	}
	if zeroCrossingRate(buf) < zcrThreshold {
		return
	}

	p.nextDispatchID++
	chunk := audio.AudioChunk{
		ChunkID:       p.nextDispatchID,
		DeviceType:    audio.Microphone,
		SampleRateHz:  rate,
		TimestampSecs: start,
		Data:          buf,
	}
	if p.out != nil {
		if err := p.out.Dispatch(chunk); err != nil {
			log.Printf("pipeline: dispatch failed: %v", err)
		}
	}
	if p.state != nil {
		p.state.RecordChunkDispatched()
	}
}

// flushRemaining dispatches whatever is accumulated. It drains nothing from
// the VAD: neither the streaming VAD nor the energy detector keeps an open
// speech region between calls, and their regions are diagnostic only.
func (p *Pipeline) flushRemaining() {
	p.dispatchNow(true)
}

func bufferRMSPeak(samples []float32) (rms, peak float32) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sumSq float64
	for _, v := range samples {
		a := float64(v)
		sumSq += a * a
		abs := v
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
	}
	rms = float32(math.Sqrt(sumSq / float64(len(samples))))
	return
}

// zeroCrossingRate returns the fraction of adjacent-sample pairs with
// opposite sign — a cheap proxy for spectral richness that catches pure
// DC/tone buffers the energy gate alone would miss.
func zeroCrossingRate(samples []float32) float32 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float32(crossings) / float32(len(samples)-1)
}
