package generation

import (
	"context"
	"sync"
)

// Pool wraps a Backend behind lazy once-initialization so that heavy
// resources (loaded models, warmed clients) are created on first use and
// reused across jobs. Unload releases the backend; the next Generate
// re-initializes it.
type Pool struct {
	factory func() (Backend, error)

	mu      sync.Mutex
	backend Backend
	initErr error
	loaded  bool
}

// NewPool creates a Pool around factory.
func NewPool(factory func() (Backend, error)) *Pool {
	return &Pool{factory: factory}
}

func (p *Pool) get() (Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		p.backend, p.initErr = p.factory()
		p.loaded = true
	}
	return p.backend, p.initErr
}

// Generate delegates to the lazily initialized backend.
func (p *Pool) Generate(ctx context.Context, req *Request, progress ProgressFunc) ([]byte, error) {
	backend, err := p.get()
	if err != nil {
		return nil, err
	}
	return backend.Generate(ctx, req, progress)
}

// Unload releases the underlying backend if it holds releasable resources.
// A failed initialization is also cleared so a later Generate can retry.
func (p *Pool) Unload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if u, ok := p.backend.(Unloader); ok {
		err = u.Unload()
	}
	p.backend = nil
	p.initErr = nil
	p.loaded = false
	return err
}
