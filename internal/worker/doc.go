// Package worker exposes the badge removal pipeline over a line-delimited
// JSON-RPC 2.0 boundary.
//
// # Protocol
//
// One JSON-RPC request per input line, one response per output line. All
// image payloads cross the boundary as base64-encoded PNG or JPEG bytes;
// nothing is shared by reference.
//
// Supported methods:
//   - initialize: load the model and badge template, build the pipeline
//   - is_initialized: report whether initialize has completed
//   - detect: locate the badge in an image
//   - inpaint: remove the badge from an image
//   - cleanup: release the inference engine
//   - ping: health check
//
// # Lifecycle
//
// detect and inpaint fail until initialize succeeds. cleanup tears the
// pipeline down and returns the worker to the uninitialized state; a later
// initialize rebuilds everything from scratch. Model downloads during
// initialize emit "progress" notifications (requests without an ID) so the
// peer can render a progress bar.
//
// # Error Handling
//
// Failures are JSON-RPC error responses:
//   - code -32600: request line exceeds the size limit (null ID)
//   - code -32601: unknown method
//   - code -32602: malformed parameters
//   - code -32000: execution failure (message carries the Go error string)
package worker
