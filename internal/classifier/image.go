package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/straja-ai/fakescan/internal/media"
)

// ImageClassifier maps one image to the probability that it is fake.
type ImageClassifier interface {
	FakeProbability(ctx context.Context, img *media.Image) (float64, error)
}

// ImageConfig locates an exported image classification model.
type ImageConfig struct {
	Path string
	// LabelsPath defaults to label_map.json, then config.json, next to Path.
	LabelsPath string
	// PreprocessorPath defaults to preprocessor_config.json next to Path.
	PreprocessorPath string
	// FakeLabel names the fake class; empty picks it from the labels.
	FakeLabel string
	// InputSize overrides the preprocessor size when > 0.
	InputSize int
	Runtime   RuntimeSettings
}

// ImageModel is an ONNX image classifier with a pool of sessions, each
// owning preallocated input and output tensors.
type ImageModel struct {
	labels    []string
	fakeIdx   int
	numLabels int
	prep      imagePreprocess
	sessions  chan *imageSession
}

type imageSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// LoadImageModel initializes the runtime and creates the session pool.
func LoadImageModel(libPath string, cfg ImageConfig) (*ImageModel, error) {
	if cfg.Path == "" {
		return nil, errors.New("image model path is empty")
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

	prepPath := cfg.PreprocessorPath
	if prepPath == "" {
		prepPath = filepath.Join(dir, "preprocessor_config.json")
	}
	var prepCfg *preprocessorConfig
	if _, err := os.Stat(prepPath); err == nil {
		if prepCfg, err = loadPreprocessorConfig(prepPath); err != nil {
			return nil, fmt.Errorf("load preprocessor: %w", err)
		}
	}
	prep, err := imagePreprocessFrom(prepCfg, cfg.InputSize)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: %w", err)
	}

	inName, outName, outDims, err := ioNames(cfg.Path, "pixel_values")
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	numLabels := classCount(outDims)
	if numLabels == 0 {
		numLabels = len(labels)
	}
	if numLabels == 0 {
		numLabels = 2
	}
	fakeIdx, err := fakeIndex(labels, cfg.FakeLabel)
	if err != nil {
		return nil, err
	}
	if fakeIdx >= numLabels {
		return nil, fmt.Errorf("fake class %d outside model output of %d classes", fakeIdx, numLabels)
	}

	rt := cfg.Runtime.withDefaults()
	m := &ImageModel{
		labels:    labels,
		fakeIdx:   fakeIdx,
		numLabels: numLabels,
		prep:      prep,
		sessions:  make(chan *imageSession, rt.Sessions),
	}
	for i := 0; i < rt.Sessions; i++ {
		s, err := newImageSession(cfg.Path, inName, outName, prep, numLabels, rt)
		if err != nil {
			m.Destroy()
			return nil, fmt.Errorf("create onnx session %d/%d: %w", i+1, rt.Sessions, err)
		}
		m.sessions <- s
	}
	return m, nil
}

func newImageSession(modelPath, inName, outName string, prep imagePreprocess, numLabels int, rt RuntimeSettings) (*imageSession, error) {
	opts, err := newSessionOptions(rt)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(prep.Height), int64(prep.Width)))
	if err != nil {
		return nil, fmt.Errorf("allocate %s tensor: %w", inName, err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(numLabels)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inName},
		[]string{outName},
		[]ort.Value{input},
		[]ort.Value{output},
		opts,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &imageSession{session: session, input: input, output: output}, nil
}

// FakeProbability runs the model and returns the softmax mass of the fake
// class. It blocks until a session is free or ctx is done.
func (m *ImageModel) FakeProbability(ctx context.Context, img *media.Image) (float64, error) {
	if m == nil || m.sessions == nil {
		return 0, errors.New("image model not initialized")
	}
	if err := img.Validate(); err != nil {
		return 0, err
	}

	var s *imageSession
	select {
	case s = <-m.sessions:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { m.sessions <- s }()

	m.prep.fillCHW(img, s.input.GetData())
	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}
	probs := softmax(s.output.GetData()[:m.numLabels])
	return float64(probs[m.fakeIdx]), nil
}

// Labels returns the class names in output order.
func (m *ImageModel) Labels() []string { return m.labels }

// Destroy releases every pooled session.
func (m *ImageModel) Destroy() {
	if m == nil || m.sessions == nil {
		return
	}
	for {
		select {
		case s := <-m.sessions:
			s.session.Destroy()
			s.input.Destroy()
			s.output.Destroy()
		default:
			return
		}
	}
}

// loadLabelsNear reads explicit, else label_map.json or config.json in dir.
// A model with no label file gets an empty list.
func loadLabelsNear(explicit, dir string) ([]string, error) {
	if explicit != "" {
		return loadLabels(explicit)
	}
	for _, name := range []string{"label_map.json", "config.json"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return loadLabels(p)
		}
	}
	return nil, nil
}
