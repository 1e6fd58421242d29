package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/straja-ai/fakescan/internal/inference"
)

// Model names used in status reports, logs and metrics.
const (
	ModelImage = "image"
	ModelAudio = "audio"
)

// Config describes every model the service can use.
type Config struct {
	// LibraryPath is the onnxruntime shared library; empty means search the
	// environment and the model directory.
	LibraryPath string
	Image       ImageConfig
	Audio       AudioConfig
}

// Registry owns the lazily loaded model handles for the process.
type Registry struct {
	image *Lazy[ImageClassifier]
	audio *Lazy[AudioClassifier]
}

// NewRegistry returns a registry that loads ONNX models from cfg on first use.
func NewRegistry(cfg Config, observe LoadObserver) *Registry {
	return NewRegistryWith(
		func(context.Context) (ImageClassifier, error) {
			return LoadImageModel(cfg.LibraryPath, cfg.Image)
		},
		func(context.Context) (AudioClassifier, error) {
			return LoadAudioModel(cfg.LibraryPath, cfg.Audio)
		},
		observe,
	)
}

// NewRegistryWith builds a registry from arbitrary loaders. A nil loader
// marks that model as not configured.
func NewRegistryWith(image LoadFunc[ImageClassifier], audio LoadFunc[AudioClassifier], observe LoadObserver) *Registry {
	if image == nil {
		image = func(context.Context) (ImageClassifier, error) {
			return nil, errors.New("image model not configured")
		}
	}
	if audio == nil {
		audio = func(context.Context) (AudioClassifier, error) {
			return nil, errors.New("audio model not configured")
		}
	}
	return &Registry{
		image: NewLazy(ModelImage, image, observe),
		audio: NewLazy(ModelAudio, audio, observe),
	}
}

// Image returns the image classifier. Load failures wrap
// inference.ErrModelUnavailable.
func (r *Registry) Image(ctx context.Context) (ImageClassifier, error) {
	m, err := r.image.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load image model: %v: %w", err, inference.ErrModelUnavailable)
	}
	return m, nil
}

// Audio returns the audio classifier. Load failures wrap
// inference.ErrModelUnavailable.
func (r *Registry) Audio(ctx context.Context) (AudioClassifier, error) {
	m, err := r.audio.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load audio model: %v: %w", err, inference.ErrModelUnavailable)
	}
	return m, nil
}

// Preload loads both models now.
func (r *Registry) Preload(ctx context.Context) error {
	if _, err := r.Image(ctx); err != nil {
		return err
	}
	if _, err := r.Audio(ctx); err != nil {
		return err
	}
	return nil
}

// ModelStatus is one row of the readiness report.
type ModelStatus struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

// Status reports the load state of every model.
func (r *Registry) Status() []ModelStatus {
	return []ModelStatus{
		lazyStatus(ModelImage, r.image.Loaded(), r.image.LastError()),
		lazyStatus(ModelAudio, r.audio.Loaded(), r.audio.LastError()),
	}
}

func lazyStatus(name string, loaded bool, err error) ModelStatus {
	st := ModelStatus{Name: name, Loaded: loaded}
	if err != nil && !loaded {
		st.Error = err.Error()
	}
	return st
}
