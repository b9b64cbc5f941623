package embed

import "sync"

// handle is the lazy-once, GPU-resident model singleton. A single model is
// loaded once per process and reused by every caller; ResetForTest clears
// it so tests can swap in a fake model between cases.
type handle struct {
	mu      sync.Mutex
	once    sync.Once
	model   Model
	loadErr error
	loader  func() (Model, error)
}

var defaultHandle = &handle{}

// SetLoader installs the factory used the first time Acquire is called.
// Tests call this (or ResetForTest) before exercising a fresh singleton.
func SetLoader(loader func() (Model, error)) {
	defaultHandle.mu.Lock()
	defer defaultHandle.mu.Unlock()
	defaultHandle.loader = loader
}

// Acquire returns the process-wide embedding model, loading it exactly
// once.
func Acquire() (Model, error) {
	defaultHandle.once.Do(func() {
		defaultHandle.mu.Lock()
		loader := defaultHandle.loader
		defaultHandle.mu.Unlock()
		if loader == nil {
			defaultHandle.loadErr = errNoLoaderConfigured
			return
		}
		defaultHandle.model, defaultHandle.loadErr = loader()
	})
	return defaultHandle.model, defaultHandle.loadErr
}

// ResetForTest clears the singleton so the next Acquire reloads. Production
// code never calls this.
func ResetForTest() {
	defaultHandle.mu.Lock()
	defer defaultHandle.mu.Unlock()
	defaultHandle.once = sync.Once{}
	defaultHandle.model = nil
	defaultHandle.loadErr = nil
	defaultHandle.loader = nil
}
