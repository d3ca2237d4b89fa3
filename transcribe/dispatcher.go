// Package transcribe drives a loaded Whisper model over a queue of
// transcription-sized audio chunks, post-processes the recognized text,
// and emits transcript-update events.
package transcribe

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"meetcore/audio"
	"meetcore/models"
	"meetcore/pipeline"
	"meetcore/transcribe/whisper"
)

const (
	minMeanEnergy      = 1e-5
	minChunkDurationMs = 1000
	transcribeTimeout  = 30 * time.Second
)

// TranscriptSegment is one recognized span of text, timestamped relative
// to the start of the recording (§3).
type TranscriptSegment struct {
	Text           string
	Start          time.Duration
	End            time.Duration
	ChunkStartSecs float64
}

// TranscriptUpdate is the event emitted after a chunk survives
// post-processing (§6 "transcript-update").
type TranscriptUpdate struct {
	Text            string
	TimestampDisplay string
	Source          string
	SequenceID      uint64
	ChunkStartTime  float64
	IsPartial       bool
}

// TranscriptSink receives accepted transcript text. The recording saver
// implements this to append to its transcript buffer (§4.5 step 7).
type TranscriptSink interface {
	AppendTranscript(TranscriptSegment)
}

// EventEmitter publishes dispatcher-observable events to the transport
// layer (§6 emitted events).
type EventEmitter interface {
	EmitTranscriptUpdate(TranscriptUpdate)
	EmitTranscriptionError(err error, userMessage string, actionable bool)
}

// Dispatcher drives one whisper.cpp context over a serial queue of
// transcription-sized chunks. One dispatcher task runs per active
// recording; transcription never runs concurrently with itself (§4.5
// Concurrency).
type Dispatcher struct {
	manager *models.Manager
	sink    TranscriptSink
	emitter EventEmitter
	input   <-chan audio.AudioChunk
}

// sequenceCounter is the process-monotonic transcript-update sequence id,
// shared by every Dispatcher so ids keep increasing across recordings.
var sequenceCounter uint64

func NewDispatcher(manager *models.Manager, sink TranscriptSink, emitter EventEmitter, input <-chan audio.AudioChunk) *Dispatcher {
	return &Dispatcher{manager: manager, sink: sink, emitter: emitter, input: input}
}

// Dispatch implements pipeline.Dispatcher, letting the pipeline enqueue
// directly into the same serial path a standalone Run loop would drain.
// It is used by callers that want synchronous, in-line transcription
// rather than a separate goroutine over a channel.
var _ pipeline.Dispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) Dispatch(chunk audio.AudioChunk) error {
	d.processChunk(chunk)
	return nil
}

// Run drains the input queue until it closes, processing each chunk
// serially (§4.5 Concurrency, §5 dispatcher suspension points).
func (d *Dispatcher) Run() {
	for chunk := range d.input {
		d.processChunk(chunk)
	}
}

func (d *Dispatcher) processChunk(chunk audio.AudioChunk) {
	if chunk.IsFlushSentinel() {
		return
	}

	samples := chunk.Data
	if chunk.SampleRateHz != whisper.SampleRate && chunk.SampleRateHz != 0 {
		samples = pipeline.Resample(samples, chunk.SampleRateHz, whisper.SampleRate)
	}

	if len(samples) == 0 {
		return
	}
	if meanEnergy(samples) < minMeanEnergy {
		return
	}

	samples = padToMinDuration(samples, whisper.SampleRate)

	model := d.manager.Loaded()
	if model == nil {
		d.emitter.EmitTranscriptionError(fmt.Errorf("no model loaded"), "No transcription model is loaded.", true)
		return
	}

	segments, err := d.transcribeWithTimeout(model, samples)
	if err != nil {
		if err == context.DeadlineExceeded {
			d.emitter.EmitTranscriptionError(err, "Transcription timed out for this segment.", false)
		} else {
			d.emitter.EmitTranscriptionError(err, "Transcription failed for this segment.", false)
		}
		return
	}

	for _, seg := range segments {
		cleaned, keep := CleanSegment(seg.Text)
		if !keep {
			continue
		}

		seq := atomic.AddUint64(&sequenceCounter, 1)
		update := TranscriptUpdate{
			Text:             cleaned,
			TimestampDisplay: time.Now().Format("15:04:05"),
			Source:           "Audio",
			SequenceID:       seq,
			ChunkStartTime:   chunk.TimestampSecs,
			IsPartial:        false,
		}
		if d.emitter != nil {
			d.emitter.EmitTranscriptUpdate(update)
		}
		if d.sink != nil {
			d.sink.AppendTranscript(TranscriptSegment{
				Text:           cleaned,
				Start:          seg.Start,
				End:            seg.End,
				ChunkStartSecs: chunk.TimestampSecs,
			})
		}
	}
}

// transcribeWithTimeout runs the model against samples, aborting the wait
// (not the in-flight C call, which cannot be cancelled) after 30 seconds
// (§4.5 step 4, §5 dispatcher timeout).
func (d *Dispatcher) transcribeWithTimeout(model *whisper.Model, samples []float32) ([]whisper.Segment, error) {
	type result struct {
		segments []whisper.Segment
		err      error
	}
	done := make(chan result, 1)

	go func() {
		segments, err := model.Transcribe(samples, whisper.DefaultEngineParams())
		done <- result{segments, err}
	}()

	select {
	case r := <-done:
		return r.segments, r.err
	case <-time.After(transcribeTimeout):
		log.Printf("transcribe: chunk timed out after %s", transcribeTimeout)
		return nil, context.DeadlineExceeded
	}
}

func meanEnergy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}

// padToMinDuration right-pads samples with zeros so the buffer is at
// least 1.0 second at sampleRateHz (§4.5 step 3).
func padToMinDuration(samples []float32, sampleRateHz int) []float32 {
	minSamples := sampleRateHz * minChunkDurationMs / 1000
	if len(samples) >= minSamples {
		return samples
	}
	padded := make([]float32, minSamples)
	copy(padded, samples)
	return padded
}

// NextSequenceID reports the sequence id the next transcript update will
// carry, read from the process-monotonic counter; it does not reserve it.
func (d *Dispatcher) NextSequenceID() uint64 {
	return atomic.LoadUint64(&sequenceCounter) + 1
}
