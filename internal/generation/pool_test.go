package generation

import (
	"context"
	"errors"
	"testing"
)

type stubBackend struct {
	generated int
	unloaded  int
}

func (s *stubBackend) Generate(ctx context.Context, req *Request, progress ProgressFunc) ([]byte, error) {
	s.generated++
	return []byte("out"), nil
}

func (s *stubBackend) Unload() error {
	s.unloaded++
	return nil
}

func TestPoolInitializesOnce(t *testing.T) {
	stub := &stubBackend{}
	calls := 0
	pool := NewPool(func() (Backend, error) {
		calls++
		return stub, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := pool.Generate(context.Background(), &Request{}, nil); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("factory calls = %d, want 1", calls)
	}
	if stub.generated != 3 {
		t.Fatalf("generated = %d, want 3", stub.generated)
	}
}

func TestPoolUnloadReleasesAndReinitializes(t *testing.T) {
	calls := 0
	pool := NewPool(func() (Backend, error) {
		calls++
		return &stubBackend{}, nil
	})

	if _, err := pool.Generate(context.Background(), &Request{}, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := pool.Unload(); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if _, err := pool.Generate(context.Background(), &Request{}, nil); err != nil {
		t.Fatalf("Generate after Unload: %v", err)
	}
	if calls != 2 {
		t.Fatalf("factory calls = %d, want 2", calls)
	}
}

func TestPoolRetriesFailedInit(t *testing.T) {
	boom := errors.New("init failed")
	calls := 0
	pool := NewPool(func() (Backend, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return &stubBackend{}, nil
	})

	if _, err := pool.Generate(context.Background(), &Request{}, nil); !errors.Is(err, boom) {
		t.Fatalf("first Generate err = %v, want init failure", err)
	}
	// The failure is cached until Unload clears it.
	if _, err := pool.Generate(context.Background(), &Request{}, nil); !errors.Is(err, boom) {
		t.Fatalf("second Generate err = %v, want cached init failure", err)
	}
	if calls != 1 {
		t.Fatalf("factory calls = %d, want 1", calls)
	}

	if err := pool.Unload(); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if _, err := pool.Generate(context.Background(), &Request{}, nil); err != nil {
		t.Fatalf("Generate after Unload: %v", err)
	}
}
