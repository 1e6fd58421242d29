package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"
)

// DefaultSampleRate is what wav2vec-style audio models expect.
const DefaultSampleRate = 16000

// AudioClassifier ranks the classes of a mono waveform.
type AudioClassifier interface {
	Classify(ctx context.Context, samples []float32) ([]Score, error)
	SampleRate() int
}

// AudioConfig locates an exported audio classification model.
type AudioConfig struct {
	Path             string
	LabelsPath       string
	PreprocessorPath string
	SampleRate       int
	Runtime          RuntimeSettings
}

// AudioModel is an ONNX audio classifier. The waveform length varies per
// call, so sessions bind tensors at run time.
type AudioModel struct {
	labels     []string
	numLabels  int
	sampleRate int
	normalize  bool
	sessions   chan *ort.DynamicAdvancedSession
}

// LoadAudioModel initializes the runtime and creates the session pool.
func LoadAudioModel(libPath string, cfg AudioConfig) (*AudioModel, error) {
	if cfg.Path == "" {
		return nil, errors.New("audio model path is empty")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", cfg.Path, err)
	}
	dir := filepath.Dir(cfg.Path)
	if err := initRuntime(libPath, dir); err != nil {
		return nil, err
	}

	labels, err := loadLabelsNear(cfg.LabelsPath, dir)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	sampleRate := cfg.SampleRate
	normalize := true
	prepPath := cfg.PreprocessorPath
	if prepPath == "" {
		prepPath = filepath.Join(dir, "preprocessor_config.json")
	}
	if _, err := os.Stat(prepPath); err == nil {
		prep, err := loadPreprocessorConfig(prepPath)
		if err != nil {
			return nil, fmt.Errorf("load preprocessor: %w", err)
		}
		if prep.DoNormalize != nil {
			normalize = *prep.DoNormalize
		}
		if sampleRate <= 0 {
			sampleRate = prep.SamplingRate
		}
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	inName, outName, outDims, err := ioNames(cfg.Path, "input_values")
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	numLabels := classCount(outDims)
	if numLabels == 0 {
		numLabels = len(labels)
	}
	if numLabels == 0 {
		return nil, errors.New("cannot determine number of audio classes; provide a label map")
	}

	rt := cfg.Runtime.withDefaults()
	m := &AudioModel{
		labels:     labels,
		numLabels:  numLabels,
		sampleRate: sampleRate,
		normalize:  normalize,
		sessions:   make(chan *ort.DynamicAdvancedSession, rt.Sessions),
	}
	for i := 0; i < rt.Sessions; i++ {
		s, err := newAudioSession(cfg.Path, inName, outName, rt)
		if err != nil {
			m.Destroy()
			return nil, fmt.Errorf("create onnx session %d/%d: %w", i+1, rt.Sessions, err)
		}
		m.sessions <- s
	}
	return m, nil
}

func newAudioSession(modelPath, inName, outName string, rt RuntimeSettings) (*ort.DynamicAdvancedSession, error) {
	opts, err := newSessionOptions(rt)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()
	s, err := ort.NewDynamicAdvancedSession(modelPath, []string{inName}, []string{outName}, opts)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return s, nil
}

// SampleRate is the rate Classify expects.
func (m *AudioModel) SampleRate() int { return m.sampleRate }

// Classify returns every class with its softmax score, highest first.
func (m *AudioModel) Classify(ctx context.Context, samples []float32) ([]Score, error) {
	if m == nil || m.sessions == nil {
		return nil, errors.New("audio model not initialized")
	}
	if len(samples) == 0 {
		return nil, errors.New("empty waveform")
	}

	x := make([]float32, len(samples))
	copy(x, samples)
	if m.normalize {
		normalizeWaveform(x)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(len(x))), x)
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	defer input.Destroy()
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(m.numLabels)))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	defer output.Destroy()

	var s *ort.DynamicAdvancedSession
	select {
	case s = <-m.sessions:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { m.sessions <- s }()

	if err := s.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	return rankScores(softmax(output.GetData()), m.labels), nil
}

// Destroy releases every pooled session.
func (m *AudioModel) Destroy() {
	if m == nil || m.sessions == nil {
		return
	}
	for {
		select {
		case s := <-m.sessions:
			s.Destroy()
		default:
			return
		}
	}
}
