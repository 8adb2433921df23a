package inpaint

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/badgewipe/badgewipe/internal/detection"
	"github.com/badgewipe/badgewipe/internal/imaging"
	"github.com/badgewipe/badgewipe/internal/onnx"
)

// EngineFactory builds (or re-builds) the inference engine on demand. The
// pipeline calls it lazily on the first inference and again after Cleanup.
type EngineFactory func() (onnx.Engine, error)

// Pipeline composes detection, masking, tensor codec, inference and
// compositing into the end-to-end badge removal flows.
//
// All entry points accept and return encoded image bytes (PNG/JPEG); decode
// and encode happen at this boundary only. One mutex serializes every
// operation: the inference engine is not safe for concurrent invocation and
// detection is deliberately capped at one in-flight call to bound peak
// memory. Concurrent callers queue.
//
// Cancellation is not supported mid-inference; the context is only honored
// between stages. A caller abandoning a slow call must discard the result
// (and may Cleanup to tear the engine down entirely).
type Pipeline struct {
	mu      sync.Mutex
	factory EngineFactory
	engine  onnx.Engine

	tmpl   *detection.Template
	detCfg detection.Config
	cfg    Config
}

// NewPipeline validates the configuration and returns a pipeline. tmpl may
// be nil when only the fixed-position flow is used; detection entry points
// then fail with a descriptive error.
func NewPipeline(factory EngineFactory, tmpl *detection.Template, detCfg detection.Config, cfg Config) (*Pipeline, error) {
	if factory == nil {
		return nil, fmt.Errorf("nil engine factory")
	}
	if err := detCfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{factory: factory, tmpl: tmpl, detCfg: detCfg, cfg: cfg}, nil
}

// DetectBadge decodes imageBytes and searches for the badge. A nil result
// with nil error means no candidate reached the possible threshold.
func (p *Pipeline) DetectBadge(ctx context.Context, imageBytes []byte) (*detection.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.tmpl == nil {
		return nil, fmt.Errorf("no badge template loaded")
	}
	img, err := imaging.Decode(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid input image: %w", err)
	}
	return detection.Detect(img, p.tmpl, p.detCfg)
}

// InpaintFixedPosition removes the badge at its known bottom-right position
// by inpainting the whole frame: the full image and a fixed-position mask
// are resized to the model input resolution, inferred, and the decoded
// output is composited back over the original using the full-image mask.
func (p *Pipeline) InpaintFixedPosition(ctx context.Context, imageBytes []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	img, err := imaging.Decode(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid input image: %w", err)
	}
	b := img.Bounds()
	mask := BuildFixedMask(b, p.cfg)

	inpainted, err := p.runInference(ctx, img, mask, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	p.checkQuality(inpainted)

	result := imaging.CompositeFeathered(img, inpainted, mask, 0, 0)
	return imaging.Encode(result, imaging.SniffFormat(imageBytes))
}

// InpaintAtDetection removes the badge using the patch-based flow. When det
// is nil the badge is located first; when detection finds nothing the
// fixed-position mask is used as the anchor instead.
//
// Cropping inference to the badge's neighborhood keeps the model's fixed
// input resolution concentrated on the artifact, which preserves detail
// that the whole-frame flow loses on large photos.
func (p *Pipeline) InpaintAtDetection(ctx context.Context, imageBytes []byte, det *detection.Result) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	img, err := imaging.Decode(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid input image: %w", err)
	}
	b := img.Bounds()

	if det == nil && p.tmpl != nil {
		det, err = detection.Detect(img, p.tmpl, p.detCfg)
		if err != nil {
			return nil, err
		}
	}

	var mask *image.NRGBA
	if det != nil {
		mask = BuildDetectionMask(b, det, p.cfg)
	} else {
		log.Debug().Msg("no detection available, falling back to fixed-position mask")
		mask = BuildFixedMask(b, p.cfg)
	}

	bundle, err := ExtractPatch(img, mask, p.cfg)
	if err != nil {
		return nil, err
	}

	pb := bundle.Image.Bounds()
	inpainted, err := p.runInference(ctx, bundle.Image, bundle.Mask, pb.Dx(), pb.Dy())
	if err != nil {
		return nil, err
	}
	p.checkQuality(inpainted)

	result, err := bundle.CompositePatch(img, inpainted)
	if err != nil {
		return nil, err
	}
	return imaging.Encode(result, imaging.SniffFormat(imageBytes))
}

// Cleanup releases the inference engine. Safe to call multiple times;
// teardown failures are logged and swallowed. The next inference re-creates
// the engine from scratch through the factory.
func (p *Pipeline) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine == nil {
		return
	}
	if err := p.engine.Close(); err != nil {
		log.Warn().Err(err).Msg("engine cleanup failed")
	}
	p.engine = nil
}

// runInference encodes img/mask, runs the model, and decodes the output
// back to targetW x targetH. Must be called with p.mu held.
func (p *Pipeline) runInference(ctx context.Context, img, mask *image.NRGBA, targetW, targetH int) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine, err := p.engineHandle()
	if err != nil {
		return nil, err
	}

	imageTensor, maskTensor := EncodeInputs(img, mask, p.cfg.InputSize)
	outputs, err := engine.Run(map[string]onnx.Tensor{
		TensorImage: imageTensor,
		TensorMask:  maskTensor,
	})
	if err != nil {
		return nil, fmt.Errorf("inpainting inference failed: %w", err)
	}

	out, ok := outputs[TensorOutput]
	if !ok {
		if len(outputs) != 1 {
			return nil, fmt.Errorf("model returned %d outputs and none named %q", len(outputs), TensorOutput)
		}
		for _, t := range outputs {
			out = t
		}
	}
	return DecodeOutput(out, targetW, targetH)
}

// engineHandle lazily builds the engine via the factory. A factory failure
// leaves the pipeline uninitialized so a later call retries initialization
// from scratch.
func (p *Pipeline) engineHandle() (onnx.Engine, error) {
	if p.engine != nil {
		return p.engine, nil
	}
	engine, err := p.factory()
	if err != nil {
		return nil, fmt.Errorf("inference engine unavailable: %w", err)
	}
	p.engine = engine
	return engine, nil
}

// checkQuality logs a warning when the inference output looks degenerate.
// Quality failures never abort the pipeline: there is no fallback
// inpainting strategy, so the best-effort result is returned regardless.
func (p *Pipeline) checkQuality(candidate *image.NRGBA) {
	if ValidateOutput(candidate, p.cfg.MinOutputVariance) {
		return
	}
	log.Warn().
		Float64("variance", OutputVariance(candidate)).
		Float64("min_variance", p.cfg.MinOutputVariance).
		Str("mean_color", MeanColorHex(candidate)).
		Msg("inference output variance below threshold, returning best-effort result")
}
