package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/badgewipe/badgewipe/internal/config"
	"github.com/badgewipe/badgewipe/internal/detection"
	"github.com/badgewipe/badgewipe/internal/inpaint"
	"github.com/badgewipe/badgewipe/internal/models"
	"github.com/badgewipe/badgewipe/internal/onnx"
)

type initializeParams struct {
	// Optional overrides of the startup configuration.
	ModelURL     string `json:"model_url,omitempty"`
	ModelPath    string `json:"model_path,omitempty"`
	TemplatePath string `json:"template_path,omitempty"`
}

// handleInitialize loads the model (local file first, download second),
// optionally loads the badge template, and builds the pipeline. Re-running
// initialize replaces any existing pipeline.
func (w *Worker) handleInitialize(ctx context.Context, req *Request) *Response {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, -32602, "invalid params", err.Error())
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cfg := w.cfg
	if params.ModelURL != "" {
		cfg.ModelURL = params.ModelURL
	}
	if params.ModelPath != "" {
		cfg.ModelPath = params.ModelPath
	}
	if params.TemplatePath != "" {
		cfg.TemplatePath = params.TemplatePath
	}

	modelBytes, err := w.resolveModel(ctx, cfg)
	if err != nil {
		return errorResponse(req.ID, -32000, "initialization failed", err.Error())
	}

	var tmpl *detection.Template
	if cfg.TemplatePath != "" {
		tmpl, err = detection.CachedTemplate(cfg.TemplatePath)
		if err != nil {
			return errorResponse(req.ID, -32000, "initialization failed", err.Error())
		}
	}

	if w.pipeline != nil {
		w.pipeline.Cleanup()
		w.disposeEngine()
	}
	pipeline, err := inpaint.NewPipeline(func() (onnx.Engine, error) {
		return w.newEngine(modelBytes)
	}, tmpl, cfg.Detection, cfg.Inpaint)
	if err != nil {
		return errorResponse(req.ID, -32000, "initialization failed", err.Error())
	}
	w.pipeline = pipeline
	log.Info().Bool("template", tmpl != nil).Int("model_bytes", len(modelBytes)).
		Msg("worker initialized")

	return okResponse(req.ID, map[string]interface{}{
		"initialized":  true,
		"has_template": tmpl != nil,
	})
}

// resolveModel produces the model bytes: ModelPath wins, otherwise the bytes
// are fetched (cached or downloaded) from ModelURL with progress forwarded
// as notifications.
func (w *Worker) resolveModel(ctx context.Context, cfg config.Config) ([]byte, error) {
	if cfg.ModelPath != "" {
		return cfg.ModelBytes()
	}
	if cfg.ModelURL == "" {
		return nil, fmt.Errorf("no model source configured: set model_path or model_url")
	}
	return w.provider.FetchBytes(ctx, cfg.ModelURL, func(p models.Progress) {
		w.notify("progress", map[string]interface{}{
			"loaded":     p.Loaded,
			"total":      p.Total,
			"percentage": p.Percentage,
		})
	})
}

func (w *Worker) handleIsInitialized(req *Request) *Response {
	w.mu.Lock()
	defer w.mu.Unlock()
	return okResponse(req.ID, map[string]interface{}{
		"initialized": w.pipeline != nil,
	})
}

type imageParams struct {
	// Image is the base64-encoded PNG or JPEG payload.
	Image string `json:"image"`
}

func decodeImageParam(raw json.RawMessage) ([]byte, error) {
	var params imageParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if params.Image == "" {
		return nil, fmt.Errorf("missing image payload")
	}
	data, err := base64.StdEncoding.DecodeString(params.Image)
	if err != nil {
		return nil, fmt.Errorf("image payload is not valid base64: %w", err)
	}
	return data, nil
}

func (w *Worker) handleDetect(ctx context.Context, req *Request) *Response {
	imageBytes, err := decodeImageParam(req.Params)
	if err != nil {
		return errorResponse(req.ID, -32602, "invalid params", err.Error())
	}

	w.mu.Lock()
	pipeline := w.pipeline
	w.mu.Unlock()
	if pipeline == nil {
		return errorResponse(req.ID, -32000, "detection failed", "worker not initialized")
	}

	result, err := pipeline.DetectBadge(ctx, imageBytes)
	if err != nil {
		return errorResponse(req.ID, -32000, "detection failed", err.Error())
	}

	resp := map[string]interface{}{"detected": result != nil}
	if result != nil {
		resp["result"] = result
	}
	return okResponse(req.ID, resp)
}

type inpaintParams struct {
	Image string `json:"image"`

	// Mode selects the flow: "auto" (default) detects the badge and inpaints
	// a patch around it; "fixed" inpaints the known bottom-right position.
	Mode string `json:"mode,omitempty"`

	// Detection optionally pins the badge location, skipping detection.
	Detection *detection.Result `json:"detection,omitempty"`
}

func (w *Worker) handleInpaint(ctx context.Context, req *Request) *Response {
	var params inpaintParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "invalid params", err.Error())
	}
	imageBytes, err := decodeImageParam(req.Params)
	if err != nil {
		return errorResponse(req.ID, -32602, "invalid params", err.Error())
	}

	w.mu.Lock()
	pipeline := w.pipeline
	w.mu.Unlock()
	if pipeline == nil {
		return errorResponse(req.ID, -32000, "inpainting failed", "worker not initialized")
	}

	var out []byte
	switch params.Mode {
	case "", "auto":
		out, err = pipeline.InpaintAtDetection(ctx, imageBytes, params.Detection)
	case "fixed":
		out, err = pipeline.InpaintFixedPosition(ctx, imageBytes)
	default:
		return errorResponse(req.ID, -32602, "invalid params",
			fmt.Sprintf("unknown mode %q, want auto or fixed", params.Mode))
	}
	if err != nil {
		return errorResponse(req.ID, -32000, "inpainting failed", err.Error())
	}

	return okResponse(req.ID, map[string]interface{}{
		"image": base64.StdEncoding.EncodeToString(out),
	})
}

// handleCleanup releases the pipeline and the shared inference session,
// returning the worker to the uninitialized state. Safe to call when nothing
// is initialized. The next initialize builds a fresh session from scratch.
func (w *Worker) handleCleanup(req *Request) *Response {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pipeline != nil {
		w.pipeline.Cleanup()
		w.disposeEngine()
		w.pipeline = nil
		log.Info().Msg("worker cleaned up")
	}
	return okResponse(req.ID, map[string]interface{}{"initialized": false})
}
