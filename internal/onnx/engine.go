// Package onnx wraps the ONNX Runtime behind a narrow inference gateway.
//
// The rest of the pipeline talks to the Engine interface only; tests inject a
// fake implementation. The real implementation owns execution-provider
// negotiation (attempt providers in preference order, fall back silently,
// error only when all fail) and the process-wide session lifecycle.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// Tensor is a dense float32 tensor with an explicit NCHW-style shape.
// Data is row-major over the shape dimensions.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Elements returns the element count implied by the shape.
func (t Tensor) Elements() int {
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// Engine runs a loaded inpainting model on named input tensors.
//
// Implementations are not safe for concurrent Run calls; callers must
// serialize. Close releases native resources and is safe to call more than
// once.
type Engine interface {
	Run(inputs map[string]Tensor) (map[string]Tensor, error)
	Close() error
}

// ErrNotInitialized is returned by Run on an engine whose session has been
// closed or never built.
var ErrNotInitialized = errors.New("inference session not initialized")

// Provider identifies an execution backend the runtime can be asked to use.
type Provider string

const (
	ProviderCUDA     Provider = "cuda"
	ProviderCoreML   Provider = "coreml"
	ProviderDirectML Provider = "directml"
	ProviderCPU      Provider = "cpu"
)

// DefaultProviders is the preference order tried during initialization:
// accelerated backends first, the portable CPU backend as the final
// fallback that is always expected to succeed.
var DefaultProviders = []Provider{ProviderCUDA, ProviderCoreML, ProviderDirectML, ProviderCPU}

// sharedLibraryEnv optionally points at the onnxruntime shared library when
// it is not on the default loader path.
const sharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var envOnce sync.Once

// ensureEnvironment initializes the process-wide ONNX runtime environment
// exactly once. The environment stays alive for the process lifetime;
// sessions are created and destroyed independently of it.
func ensureEnvironment() error {
	var err error
	envOnce.Do(func() {
		if path := os.Getenv(sharedLibraryEnv); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		err = ort.InitializeEnvironment()
	})
	if err != nil {
		return fmt.Errorf("failed to initialize onnxruntime environment: %w", err)
	}
	if !ort.IsInitialized() {
		return fmt.Errorf("onnxruntime environment is not initialized")
	}
	return nil
}

// SessionEngine is the ONNX Runtime backed Engine implementation.
type SessionEngine struct {
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
	provider    Provider
}

// NewSessionEngine builds a session from raw model bytes, attempting the
// given execution providers in order. Initialization failures on individual
// providers are logged at debug level and skipped; an error is returned only
// when every provider fails.
func NewSessionEngine(modelBytes []byte, providers []Provider) (*SessionEngine, error) {
	if len(modelBytes) == 0 {
		return nil, fmt.Errorf("empty model byte buffer")
	}
	if len(providers) == 0 {
		providers = DefaultProviders
	}
	if err := ensureEnvironment(); err != nil {
		return nil, err
	}

	inputNames, outputNames, err := modelIONames(modelBytes)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, provider := range providers {
		session, err := createSession(modelBytes, inputNames, outputNames, provider)
		if err != nil {
			log.Debug().Str("provider", string(provider)).Err(err).
				Msg("execution provider unavailable, trying next")
			lastErr = err
			continue
		}
		log.Info().Str("provider", string(provider)).Msg("inference session ready")
		return &SessionEngine{
			session:     session,
			inputNames:  inputNames,
			outputNames: outputNames,
			provider:    provider,
		}, nil
	}
	return nil, fmt.Errorf("all execution providers failed, last error: %w", lastErr)
}

// Provider reports which execution provider the session ended up on.
func (e *SessionEngine) Provider() Provider { return e.provider }

// modelIONames reads the model's declared input and output names.
func modelIONames(modelBytes []byte) (inputs, outputs []string, err error) {
	inputInfo, outputInfo, err := ort.GetInputOutputInfoWithONNXData(modelBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model input/output info: %w", err)
	}
	if len(inputInfo) == 0 || len(outputInfo) == 0 {
		return nil, nil, fmt.Errorf("model declares %d inputs and %d outputs; need at least one of each",
			len(inputInfo), len(outputInfo))
	}
	for _, info := range inputInfo {
		inputs = append(inputs, info.Name)
	}
	for _, info := range outputInfo {
		outputs = append(outputs, info.Name)
	}
	return inputs, outputs, nil
}

// createSession builds a DynamicAdvancedSession configured for one provider.
func createSession(modelBytes []byte, inputNames, outputNames []string, provider Provider) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			log.Warn().Err(err).Msg("failed to release session options")
		}
	}()

	switch provider {
	case ProviderCUDA:
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("cuda provider options: %w", err)
		}
		defer func() {
			if err := cudaOpts.Destroy(); err != nil {
				log.Warn().Err(err).Msg("failed to release cuda provider options")
			}
		}()
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("cuda provider: %w", err)
		}
	case ProviderCoreML:
		if err := opts.AppendExecutionProviderCoreML(0); err != nil {
			return nil, fmt.Errorf("coreml provider: %w", err)
		}
	case ProviderDirectML:
		if err := opts.AppendExecutionProviderDirectML(0); err != nil {
			return nil, fmt.Errorf("directml provider: %w", err)
		}
	case ProviderCPU:
		// Default provider, nothing to append.
	default:
		return nil, fmt.Errorf("unknown execution provider %q", provider)
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(modelBytes, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create session on %s: %w", provider, err)
	}
	return session, nil
}

// Run executes the model on the named inputs and returns the named outputs.
//
// Inputs must cover every name the model declares. Output data is copied out
// of runtime-owned memory before the native tensors are destroyed, so the
// returned tensors are plain Go values.
func (e *SessionEngine) Run(inputs map[string]Tensor) (map[string]Tensor, error) {
	if e.session == nil {
		return nil, ErrNotInitialized
	}

	inputValues := make([]ort.Value, len(e.inputNames))
	defer func() {
		for _, v := range inputValues {
			if v != nil {
				if err := v.Destroy(); err != nil {
					log.Warn().Err(err).Msg("failed to release input tensor")
				}
			}
		}
	}()
	for i, name := range e.inputNames {
		in, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("missing input tensor %q", name)
		}
		if len(in.Data) != in.Elements() {
			return nil, fmt.Errorf("input %q: data length %d does not match shape %v", name, len(in.Data), in.Shape)
		}
		value, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to create input tensor %q: %w", name, err)
		}
		inputValues[i] = value
	}

	outputValues := make([]ort.Value, len(e.outputNames))
	if err := e.session.Run(inputValues, outputValues); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, v := range outputValues {
			if v != nil {
				if err := v.Destroy(); err != nil {
					log.Warn().Err(err).Msg("failed to release output tensor")
				}
			}
		}
	}()

	outputs := make(map[string]Tensor, len(e.outputNames))
	for i, name := range e.outputNames {
		value := outputValues[i]
		if value == nil {
			return nil, fmt.Errorf("model produced no output for %q", name)
		}
		tensor, ok := value.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %q is not a float32 tensor", name)
		}
		shape := tensor.GetShape()
		data := make([]float32, len(tensor.GetData()))
		copy(data, tensor.GetData())
		outputs[name] = Tensor{Data: data, Shape: append([]int64(nil), shape...)}
	}
	return outputs, nil
}

// Close destroys the underlying session. Safe to call multiple times;
// failures are logged and swallowed so teardown never blocks progress.
func (e *SessionEngine) Close() error {
	if e.session == nil {
		return nil
	}
	if err := e.session.Destroy(); err != nil {
		log.Warn().Err(err).Msg("failed to destroy inference session")
	}
	e.session = nil
	return nil
}
