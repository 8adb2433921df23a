package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/badgewipe/badgewipe/internal/config"
	"github.com/badgewipe/badgewipe/internal/imaging"
	"github.com/badgewipe/badgewipe/internal/inpaint"
	"github.com/badgewipe/badgewipe/internal/models"
	"github.com/badgewipe/badgewipe/internal/onnx"
)

// Request is an incoming JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Notification is an outgoing request without an ID; the peer must not
// answer it. Used for download progress during initialize.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// engineFactory abstracts engine construction so tests can inject a fake.
type engineFactory func(modelBytes []byte) (onnx.Engine, error)

// maxRequestBytes caps a single request line: the base64 expansion of the
// largest decodable image payload plus headroom for the JSON envelope.
const maxRequestBytes = (imaging.MaxDecodeBytes/3+1)*4 + 64*1024

// Worker owns the pipeline lifecycle behind the RPC boundary.
type Worker struct {
	mu       sync.Mutex
	cfg      config.Config
	provider *models.Provider
	pipeline *inpaint.Pipeline

	newEngine     engineFactory
	disposeEngine func()
	notify        func(method string, params interface{})
	maxLineBytes  int
}

// New creates a worker from the application configuration. The pipeline is
// not built here; that happens on the initialize request.
//
// Engine construction goes through the process-wide onnx.Acquire handle, so
// repeated initialize cycles reuse one session until cleanup disposes it.
func New(cfg config.Config) *Worker {
	return &Worker{
		cfg:      cfg,
		provider: models.NewProvider(cfg.CacheDir),
		newEngine: func(modelBytes []byte) (onnx.Engine, error) {
			return onnx.Acquire(modelBytes, nil)
		},
		disposeEngine: onnx.Dispose,
		notify:        func(string, interface{}) {},
		maxLineBytes:  maxRequestBytes,
	}
}

// Run reads requests from r line by line and writes responses to w until r
// is exhausted. Malformed lines are logged and skipped, and a line exceeding
// the request size limit is drained and answered with a JSON-RPC error; the
// loop never dies on a single bad request.
func (w *Worker) Run(ctx context.Context, r io.Reader, out io.Writer) error {
	reader := bufio.NewReaderSize(r, 64*1024)

	var encMu sync.Mutex
	encoder := json.NewEncoder(out)
	write := func(v interface{}) {
		encMu.Lock()
		defer encMu.Unlock()
		if err := encoder.Encode(v); err != nil {
			log.Warn().Err(err).Msg("failed to write response")
		}
	}
	w.notify = func(method string, params interface{}) {
		write(Notification{JSONRPC: "2.0", Method: method, Params: params})
	}

	for {
		line, truncated, err := readLimitedLine(reader, w.maxLineBytes)
		switch {
		case truncated:
			// The ID is unknowable without parsing the oversized line, so
			// the error response carries a null ID.
			log.Warn().Int("limit", w.maxLineBytes).Msg("dropping oversized request line")
			write(errorResponse(nil, -32600, "request too large",
				fmt.Sprintf("request line exceeds the %d byte limit", w.maxLineBytes)))
		case len(line) > 0:
			var req Request
			if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
				log.Warn().Err(jsonErr).Msg("failed to parse request line")
				break
			}
			if resp := w.handleRequest(ctx, &req); resp != nil {
				write(resp)
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("request stream error: %w", err)
		}
	}
}

// readLimitedLine reads one newline-terminated line from r, accumulating at
// most limit bytes. An over-long line is drained to its newline and reported
// as truncated with no content, so the caller can answer it and move on.
func readLimitedLine(r *bufio.Reader, limit int) (line []byte, truncated bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !truncated {
			if len(line)+len(chunk) > limit {
				truncated = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch err {
		case bufio.ErrBufferFull:
			continue
		case nil, io.EOF:
			line = bytes.TrimRight(line, "\r\n")
			return line, truncated, err
		default:
			return nil, truncated, err
		}
	}
}

// handleRequest routes a request to its handler.
func (w *Worker) handleRequest(ctx context.Context, req *Request) *Response {
	log.Debug().Str("method", req.Method).Msg("request received")
	switch req.Method {
	case "initialize":
		return w.handleInitialize(ctx, req)
	case "is_initialized":
		return w.handleIsInitialized(req)
	case "detect":
		return w.handleDetect(ctx, req)
	case "inpaint":
		return w.handleInpaint(ctx, req)
	case "cleanup":
		return w.handleCleanup(req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &RPCError{
				Code:    -32601,
				Message: fmt.Sprintf("method not found: %s", req.Method),
			},
		}
	}
}

// errorResponse builds a JSON-RPC error response.
func errorResponse(id interface{}, code int, message, data string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

func okResponse(id interface{}, result interface{}) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}
