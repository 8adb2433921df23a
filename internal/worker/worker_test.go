package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badgewipe/badgewipe/internal/config"
	"github.com/badgewipe/badgewipe/internal/imaging"
	"github.com/badgewipe/badgewipe/internal/onnx"
)

// grayEngine answers every Run with constant mid-gray in the [0,1] regime.
type grayEngine struct{ runs int }

func (e *grayEngine) Run(inputs map[string]onnx.Tensor) (map[string]onnx.Tensor, error) {
	e.runs++
	img, ok := inputs["image"]
	if !ok {
		return nil, fmt.Errorf("missing image input")
	}
	out := make([]float32, len(img.Data))
	for i := range out {
		out[i] = 0.5
	}
	return map[string]onnx.Tensor{"output": {Data: out, Shape: append([]int64(nil), img.Shape...)}}, nil
}

func (e *grayEngine) Close() error { return nil }

func newTestWorker(t *testing.T) (*Worker, *grayEngine) {
	t.Helper()

	modelPath := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(modelPath, []byte("weights"), 0o644))

	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.ModelPath = modelPath

	engine := &grayEngine{}
	w := New(cfg)
	w.newEngine = func([]byte) (onnx.Engine, error) { return engine, nil }
	w.disposeEngine = func() {}
	return w, engine
}

func imageB64(t *testing.T, w, h int) string {
	t.Helper()
	img := imaging.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	data, err := imaging.Encode(img, imaging.FormatPNG)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func call(t *testing.T, w *Worker, method string, params interface{}) *Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		raw = data
	}
	return w.handleRequest(context.Background(), &Request{
		JSONRPC: "2.0", ID: 1, Method: method, Params: raw,
	})
}

func TestPing(t *testing.T) {
	w, _ := newTestWorker(t)
	resp := call(t, w, "ping", nil)
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
}

func TestUnknownMethod(t *testing.T) {
	w, _ := newTestWorker(t)
	resp := call(t, w, "frobnicate", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestDetectBeforeInitialize(t *testing.T) {
	w, _ := newTestWorker(t)
	resp := call(t, w, "detect", map[string]string{"image": imageB64(t, 64, 64)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32000, resp.Error.Code)
	assert.Contains(t, fmt.Sprint(resp.Error.Data), "not initialized")
}

func TestInitializeAndLifecycle(t *testing.T) {
	w, engine := newTestWorker(t)

	resp := call(t, w, "is_initialized", nil)
	assert.Equal(t, false, resp.Result.(map[string]interface{})["initialized"])

	resp = call(t, w, "initialize", nil)
	require.Nil(t, resp.Error, "initialize: %+v", resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, true, result["initialized"])
	assert.Equal(t, false, result["has_template"])

	resp = call(t, w, "is_initialized", nil)
	assert.Equal(t, true, resp.Result.(map[string]interface{})["initialized"])

	// Fixed-mode inpaint round-trips to a decodable image of the same size.
	resp = call(t, w, "inpaint", map[string]string{
		"image": imageB64(t, 128, 128),
		"mode":  "fixed",
	})
	require.Nil(t, resp.Error, "inpaint: %+v", resp.Error)
	encoded := resp.Result.(map[string]interface{})["image"].(string)
	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, err := imaging.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 1, engine.runs)

	resp = call(t, w, "cleanup", nil)
	require.Nil(t, resp.Error)
	resp = call(t, w, "is_initialized", nil)
	assert.Equal(t, false, resp.Result.(map[string]interface{})["initialized"])

	// Cleanup is idempotent.
	resp = call(t, w, "cleanup", nil)
	require.Nil(t, resp.Error)
}

func TestInitializeWithoutModelSource(t *testing.T) {
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	w := New(cfg)

	resp := call(t, w, "initialize", nil)
	require.NotNil(t, resp.Error)
	assert.Contains(t, fmt.Sprint(resp.Error.Data), "no model source")
}

func TestInpaintRejectsBadPayloads(t *testing.T) {
	w, _ := newTestWorker(t)
	require.Nil(t, call(t, w, "initialize", nil).Error)

	resp := call(t, w, "inpaint", map[string]string{"image": "not-base64!!!"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)

	resp = call(t, w, "inpaint", map[string]string{
		"image": imageB64(t, 32, 32),
		"mode":  "sideways",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)

	resp = call(t, w, "inpaint", map[string]string{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestRunLoopOversizedRequest(t *testing.T) {
	// A request line beyond the size limit must be drained and answered with
	// an error, and the loop must keep serving later requests.
	w, _ := newTestWorker(t)
	w.maxLineBytes = 1024

	input := strings.Repeat("x", 4096) + "\n" +
		`{"jsonrpc":"2.0","id":7,"method":"ping"}` + "\n"

	var out bytes.Buffer
	require.NoError(t, w.Run(context.Background(), strings.NewReader(input), &out))

	scanner := bufio.NewScanner(&out)
	var responses []Response
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 2)

	require.NotNil(t, responses[0].Error)
	assert.Equal(t, -32600, responses[0].Error.Code)
	assert.Contains(t, responses[0].Error.Message, "too large")
	assert.Nil(t, responses[0].ID)

	assert.Nil(t, responses[1].Error, "ping after the oversized line must still be served")
	assert.EqualValues(t, 7, responses[1].ID)
}

func TestReadLimitedLine(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader(
		"short\n"+strings.Repeat("y", 100)+"\nafter\n"), 16)

	line, truncated, err := readLimitedLine(r, 32)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, []byte("short"), line)

	line, truncated, err = readLimitedLine(r, 32)
	require.NoError(t, err)
	assert.True(t, truncated, "100-byte line exceeds the 32-byte limit")
	assert.Empty(t, line)

	line, truncated, err = readLimitedLine(r, 32)
	assert.False(t, truncated)
	assert.Equal(t, []byte("after"), line)
	_ = err // final line may or may not carry EOF depending on trailing newline
}

func TestCleanupDisposesSharedEngine(t *testing.T) {
	w, _ := newTestWorker(t)
	builds, disposals := 0, 0
	w.newEngine = func([]byte) (onnx.Engine, error) {
		builds++
		return &grayEngine{}, nil
	}
	w.disposeEngine = func() { disposals++ }

	require.Nil(t, call(t, w, "initialize", nil).Error)
	img := map[string]string{"image": imageB64(t, 64, 64), "mode": "fixed"}
	require.Nil(t, call(t, w, "inpaint", img).Error)
	assert.Equal(t, 1, builds, "engine built lazily on first inference")
	assert.Equal(t, 0, disposals)

	require.Nil(t, call(t, w, "cleanup", nil).Error)
	assert.Equal(t, 1, disposals, "cleanup must release the shared session")

	// Re-initialize after cleanup builds a fresh session.
	require.Nil(t, call(t, w, "initialize", nil).Error)
	require.Nil(t, call(t, w, "inpaint", img).Error)
	assert.Equal(t, 2, builds)

	// Repeated initialize disposes the previous session before rebuilding.
	require.Nil(t, call(t, w, "initialize", nil).Error)
	assert.Equal(t, 2, disposals)
}

func TestRunLoop(t *testing.T) {
	w, _ := newTestWorker(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		``,
		`not json at all`,
		`{"jsonrpc":"2.0","id":2,"method":"nope"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, w.Run(context.Background(), strings.NewReader(input), &out))

	scanner := bufio.NewScanner(&out)
	var responses []Response
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 2, "blank and malformed lines are skipped")
	assert.Nil(t, responses[0].Error)
	require.NotNil(t, responses[1].Error)
	assert.Equal(t, -32601, responses[1].Error.Code)
}
