// Package generation defines the contract between the job executor and the
// image generation backend. The executor never manages model lifecycle or
// inference details; it hands over job parameters and consumes bytes or an
// error.
package generation

import (
	"context"
	"fmt"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
)

// ProgressFunc reports one completed inference step. Implementations may
// invoke it zero or more times during Generate; step is 1-based.
type ProgressFunc func(step, totalSteps int)

// Request carries the parameters for generating one view of one job.
type Request struct {
	// SourceImage holds the owner's uploaded image bytes.
	SourceImage []byte

	// SourceURL optionally points at a publicly fetchable copy of the source
	// image. Remote backends prefer it over re-uploading the bytes.
	SourceURL string

	Region   string
	Scenario string
	View     string
	Message  string

	// StepCount is the requested number of inference steps.
	StepCount int
}

// Backend turns job parameters into generated image bytes. Implementations
// are selected at process start; the executor only sees this interface.
type Backend interface {
	Generate(ctx context.Context, req *Request, progress ProgressFunc) ([]byte, error)
}

// Unloader is implemented by backends holding heavy resources that can be
// released explicitly.
type Unloader interface {
	Unload() error
}

// NewBackend creates the configured Backend implementation wrapped in a Pool.
func NewBackend(cfg *config.GenerationConfig) (Backend, error) {
	switch cfg.Backend {
	case "replicate", "":
		return NewPool(func() (Backend, error) {
			return NewReplicateBackend(&ReplicateConfig{
				APIToken: cfg.APIToken,
				BaseURL:  cfg.BaseURL,
				Model:    cfg.Model,
				Timeout:  cfg.Timeout,
			})
		}), nil
	default:
		return nil, fmt.Errorf("unknown generation backend %q", cfg.Backend)
	}
}
