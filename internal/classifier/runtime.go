// Package classifier runs the learned image and audio models with ONNX
// Runtime and loads them lazily, once, on first use.
package classifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultIntraThreads = 4
	defaultInterThreads = 1
)

// RuntimeSettings tune one ONNX session pool.
type RuntimeSettings struct {
	Sessions     int
	IntraThreads int
	InterThreads int
}

func (rt RuntimeSettings) withDefaults() RuntimeSettings {
	if rt.Sessions <= 0 {
		rt.Sessions = 1
	}
	if rt.IntraThreads <= 0 {
		rt.IntraThreads = defaultIntraThreads
	}
	if rt.InterThreads <= 0 {
		rt.InterThreads = defaultInterThreads
	}
	return rt
}

var runtimeMu sync.Mutex

// initRuntime points onnxruntime_go at the shared library and initializes
// the environment. It is safe to call repeatedly.
func initRuntime(explicit, modelDir string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	libPath := resolveSharedLibraryPath(explicit, modelDir)
	if libPath == "" {
		return errors.New("onnxruntime shared library not found; set models.onnxruntime_library or ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime shared
// library. An explicit path wins, then ONNXRUNTIME_SHARED_LIBRARY_PATH, then
// common names next to the model and in system locations.
func resolveSharedLibraryPath(explicit, modelDir string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

func newSessionOptions(rt RuntimeSettings) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(rt.IntraThreads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(rt.InterThreads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set inter threads: %w", err)
	}
	return opts, nil
}

// ioNames picks the input and output tensor names of a model. preferredIn
// is used when present; the output is "logits" or the only output.
func ioNames(modelPath, preferredIn string) (string, string, []int64, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithOptions(modelPath, nil)
	if err != nil {
		return "", "", nil, err
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return "", "", nil, errors.New("model has no inputs or outputs")
	}
	inName := inputs[0].Name
	for _, in := range inputs {
		if strings.EqualFold(in.Name, preferredIn) {
			inName = in.Name
			break
		}
	}
	for _, out := range outputs {
		if strings.EqualFold(out.Name, "logits") {
			return inName, out.Name, out.Dimensions, nil
		}
	}
	if len(outputs) == 1 {
		return inName, outputs[0].Name, outputs[0].Dimensions, nil
	}
	return "", "", nil, fmt.Errorf("multiple outputs found without logits: %v", outputNames(outputs))
}

func outputNames(outputs []ort.InputOutputInfo) []string {
	names := make([]string, 0, len(outputs))
	for _, o := range outputs {
		names = append(names, o.Name)
	}
	return names
}

// classCount returns the static last dimension of an output, or 0.
func classCount(dims []int64) int {
	if len(dims) == 0 {
		return 0
	}
	if last := dims[len(dims)-1]; last > 0 {
		return int(last)
	}
	return 0
}
