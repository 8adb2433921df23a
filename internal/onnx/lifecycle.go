package onnx

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Process-wide engine handle. The session is expensive to build (model parse,
// provider negotiation) and the model bytes never change within a process, so
// one engine is shared across pipeline calls. Callers still serialize Run.
var (
	globalMu     sync.Mutex
	globalEngine *SessionEngine
)

// Acquire returns the shared engine, creating it on first use from the given
// model bytes and provider preference list. Subsequent calls reuse the
// existing engine and ignore the arguments until Dispose is called.
func Acquire(modelBytes []byte, providers []Provider) (Engine, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalEngine != nil {
		return globalEngine, nil
	}
	engine, err := NewSessionEngine(modelBytes, providers)
	if err != nil {
		return nil, err
	}
	globalEngine = engine
	return globalEngine, nil
}

// Dispose tears down the shared engine. Safe to call multiple times and when
// nothing was acquired; teardown failures are logged and swallowed. After
// Dispose, the next Acquire initializes a fresh session from scratch.
func Dispose() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalEngine == nil {
		return
	}
	if err := globalEngine.Close(); err != nil {
		log.Warn().Err(err).Msg("engine teardown failed")
	}
	globalEngine = nil
}
