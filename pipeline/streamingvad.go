package pipeline

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// StreamingVADConfig configures the neural streaming VAD.
type StreamingVADConfig struct {
	ModelPath  string
	SampleRateHz int
	Threshold  float32
}

func DefaultStreamingVADConfig(modelPath string) StreamingVADConfig {
	return StreamingVADConfig{ModelPath: modelPath, SampleRateHz: 16000, Threshold: 0.5}
}

// StreamingVAD wraps a Silero-style ONNX voice-activity model whose LSTM
// hidden/cell state and sample context carry across ProcessChunk calls, so
// a long recording can be fed one small window at a time without losing
// the model's notion of "have we been in speech."
type StreamingVAD struct {
	session *ort.DynamicAdvancedSession
	config  StreamingVADConfig

	mu sync.Mutex
	// state is the LSTM h/c pair, shape [2,1,128] flattened.
	state []float32
	// context holds the trailing samples of the previous chunk: 64
	// samples at 16kHz, 32 at 8kHz.
	context []float32

	windowSize int
}

var (
	onnxRuntimeInitOnce sync.Once
	onnxRuntimeInitErr  error
)

func ensureONNXRuntime() error {
	onnxRuntimeInitOnce.Do(func() {
		if lib := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		onnxRuntimeInitErr = ort.InitializeEnvironment()
	})
	return onnxRuntimeInitErr
}

// NewStreamingVAD loads the ONNX model and allocates the carried state.
func NewStreamingVAD(config StreamingVADConfig) (*StreamingVAD, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("streaming VAD model not found: %s", config.ModelPath)
	}
	if config.SampleRateHz != 8000 && config.SampleRateHz != 16000 {
		return nil, fmt.Errorf("streaming VAD sample rate must be 8000 or 16000, got %d", config.SampleRateHz)
	}
	if err := ensureONNXRuntime(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		config.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	contextSize := 64
	windowSize := 512
	if config.SampleRateHz == 8000 {
		contextSize = 32
		windowSize = 256
	}

	return &StreamingVAD{
		session:    session,
		config:     config,
		state:      make([]float32, 2*1*128),
		context:    make([]float32, contextSize),
		windowSize: windowSize,
	}, nil
}

// WindowSize is the exact sample count ProcessChunk expects.
func (v *StreamingVAD) WindowSize() int { return v.windowSize }

// ResetState zeroes the carried LSTM state and context, starting a fresh
// streaming session.
func (v *StreamingVAD) ResetState() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.state {
		v.state[i] = 0
	}
	for i := range v.context {
		v.context[i] = 0
	}
}

// ProcessChunk runs one inference step over exactly WindowSize samples and
// returns the speech probability, updating the carried state for the next
// call.
func (v *StreamingVAD) ProcessChunk(samples []float32) (float32, error) {
	if len(samples) != v.windowSize {
		return 0, fmt.Errorf("streaming VAD expects %d samples, got %d", v.windowSize, len(samples))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	contextSize := len(v.context)
	inputData := make([]float32, contextSize+len(samples))
	copy(inputData[:contextSize], v.context)
	copy(inputData[contextSize:], samples)
	copy(v.context, samples[len(samples)-contextSize:])

	inputShape := ort.NewShape(1, int64(len(inputData)))
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return 0, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateShape := ort.NewShape(2, 1, 128)
	stateTensor, err := ort.NewTensor(stateShape, v.state)
	if err != nil {
		return 0, fmt.Errorf("create state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(v.config.SampleRateHz)})
	if err != nil {
		return 0, fmt.Errorf("create sample-rate tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := v.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, fmt.Errorf("run inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	outTensor := outputs[0].(*ort.Tensor[float32])
	stateNTensor := outputs[1].(*ort.Tensor[float32])
	copy(v.state, stateNTensor.GetData())

	probData := outTensor.GetData()
	if len(probData) == 0 {
		return 0, nil
	}
	return probData[0], nil
}

// Close releases the ONNX session.
func (v *StreamingVAD) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session != nil {
		v.session.Destroy()
		v.session = nil
	}
}

// FeedAndSegment pushes samples through ProcessChunk window-by-window and
// returns any speech region whose end transition is observed within this
// call; a region still in speech when the samples run out is closed at the
// end of this call and returned as well. It is the pipeline's diagnostic feed (§4.4 step 2): its output is
// never used to replace raw accumulation.
func (v *StreamingVAD) FeedAndSegment(samples []float32, baseMs int64) ([]SpeechRegion, error) {
	var regions []SpeechRegion
	var inSpeech bool
	var startMs int64

	windowMs := int64(float64(v.windowSize) * 1000 / float64(v.config.SampleRateHz))

	for i := 0; i+v.windowSize <= len(samples); i += v.windowSize {
		prob, err := v.ProcessChunk(samples[i : i+v.windowSize])
		if err != nil {
			return regions, err
		}
		currentMs := baseMs + int64(i)*1000/int64(v.config.SampleRateHz)
		isSpeech := prob >= v.config.Threshold

		if isSpeech && !inSpeech {
			inSpeech = true
			startMs = currentMs
		} else if !isSpeech && inSpeech {
			regions = append(regions, SpeechRegion{StartMs: startMs, EndMs: currentMs})
			inSpeech = false
		}
		_ = windowMs
	}

	if inSpeech {
		endMs := baseMs + int64(len(samples))*1000/int64(v.config.SampleRateHz)
		regions = append(regions, SpeechRegion{StartMs: startMs, EndMs: endMs})
	}

	return regions, nil
}
