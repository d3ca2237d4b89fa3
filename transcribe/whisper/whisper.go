// Package whisper binds to a locally built whisper.cpp the same way the
// teacher's ai/binding package does: directly via cgo against a vendored
// checkout, not a fetchable Go module. There is nothing to add to go.mod
// for this package.
package whisper

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unsafe"
)

/*
#cgo LDFLAGS: -lm -lstdc++
#cgo linux LDFLAGS: -fopenmp
#cgo darwin CFLAGS: -I. -I../../whisper.cpp/include -DGGML_USE_METAL -DGGML_USE_CPU
#cgo darwin CXXFLAGS: -I. -I../../whisper.cpp/include -std=c++17 -DGGML_USE_METAL -DGGML_USE_CPU
#cgo darwin LDFLAGS: ${SRCDIR}/../../whisper.cpp/build/src/libwhisper.a
#cgo darwin LDFLAGS: ${SRCDIR}/../../whisper.cpp/build/ggml/src/libggml.a
#cgo darwin LDFLAGS: ${SRCDIR}/../../whisper.cpp/build/ggml/src/libggml-cpu.a
#cgo darwin LDFLAGS: -framework Accelerate -framework Metal -framework MetalKit -framework Foundation -framework CoreGraphics
#cgo CFLAGS: -I. -O3
#cgo CXXFLAGS: -I. -O3 -std=c++17
#include <stdlib.h>
#include "whisper.h"
*/
import "C"

var (
	ErrUnableToLoadModel    = errors.New("unable to load model")
	ErrInternalAppError     = errors.New("internal application error")
	ErrProcessingFailed     = errors.New("processing failed")
	ErrUnsupportedLanguage  = errors.New("unsupported language")
	ErrModelNotMultilingual = errors.New("model is not multilingual")
)

const SampleRate = 16000

// EngineParams are the fixed decoding parameters this engine always uses
// (§4.5 "Engine parameters"). They are not user-configurable; the
// dispatcher owns exactly one tuned profile.
type EngineParams struct {
	BeamSize              int
	Patience              float32
	Language              string
	Translate             bool
	Temperature           float32
	EntropyThreshold      float32
	LogProbThreshold      float32
	NoSpeechThreshold     float32
	SuppressBlank         bool
	SuppressNonSpeechToks bool
	MaxOutputLength       int
}

func DefaultEngineParams() EngineParams {
	return EngineParams{
		BeamSize:              5,
		Patience:              1.0,
		Language:              "en",
		Translate:             false,
		Temperature:           0.4,
		EntropyThreshold:      2.4,
		LogProbThreshold:      -1.0,
		NoSpeechThreshold:     0.6,
		SuppressBlank:         true,
		SuppressNonSpeechToks: true,
		MaxOutputLength:       224,
	}
}

// Segment is one recognized span of text with millisecond timestamps
// relative to the start of the processed buffer.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Model wraps a loaded whisper.cpp context. One Model is created per
// loaded GGML file; it is exclusive to the dispatcher that owns it.
type Model struct {
	ctx  *C.struct_whisper_context
	path string
	mu   sync.Mutex
}

// New loads a GGML model file from disk.
func New(modelPath string) (*Model, error) {
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	params := C.whisper_context_default_params()
	ctx := C.whisper_init_from_file_with_params(cPath, params)
	if ctx == nil {
		return nil, ErrUnableToLoadModel
	}
	return &Model{ctx: ctx, path: modelPath}, nil
}

func (m *Model) IsMultilingual() bool {
	return int(C.whisper_is_multilingual(m.ctx)) != 0
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		C.whisper_free(m.ctx)
		m.ctx = nil
	}
	return nil
}

// Transcribe processes normalized mono f32 samples at 16kHz and returns
// the recognized segments using the fixed EngineParams profile.
func (m *Model) Transcribe(samples []float32, params EngineParams) ([]Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil, ErrInternalAppError
	}

	cparams := C.whisper_full_default_params(C.WHISPER_SAMPLING_BEAM_SEARCH)
	cparams.beam_search.beam_size = C.int(params.BeamSize)
	cparams.beam_search.patience = C.float(params.Patience)
	cparams.translate = C.bool(params.Translate)
	cparams.temperature = C.float(params.Temperature)
	cparams.entropy_thold = C.float(params.EntropyThreshold)
	cparams.logprob_thold = C.float(params.LogProbThreshold)
	cparams.no_speech_thold = C.float(params.NoSpeechThreshold)
	cparams.suppress_blank = C.bool(params.SuppressBlank)
	cparams.suppress_non_speech_tokens = C.bool(params.SuppressNonSpeechToks)
	cparams.max_len = C.int(params.MaxOutputLength)
	cparams.split_on_word = C.bool(true)
	cparams.n_max_text_ctx = C.int(0) // no cross-segment conditioning

	if params.Language != "" && params.Language != "auto" {
		if !m.IsMultilingual() {
			return nil, ErrModelNotMultilingual
		}
		cLang := C.CString(params.Language)
		defer C.free(unsafe.Pointer(cLang))
		id := C.whisper_lang_id(cLang)
		if id == -1 {
			return nil, ErrUnsupportedLanguage
		}
		cparams.language = cLang
	}

	if len(samples) == 0 {
		return nil, ErrProcessingFailed
	}

	ret := C.whisper_full(m.ctx, cparams, (*C.float)(unsafe.Pointer(&samples[0])), C.int(len(samples)))
	if ret != 0 {
		return nil, ErrProcessingFailed
	}

	n := int(C.whisper_full_n_segments(m.ctx))
	segments := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		text := C.GoString(C.whisper_full_get_segment_text(m.ctx, C.int(i)))
		t0 := int64(C.whisper_full_get_segment_t0(m.ctx, C.int(i))) * 10 // centiseconds -> ms
		t1 := int64(C.whisper_full_get_segment_t1(m.ctx, C.int(i))) * 10
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: time.Duration(t0) * time.Millisecond,
			End:   time.Duration(t1) * time.Millisecond,
			Text:  text,
		})
	}
	return segments, nil
}
