package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/events"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/queue"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/storage"
	"github.com/google/uuid"
)

// Validation errors surfaced to the submission transport as 400s.
var (
	ErrInvalidRegion   = errors.New("unsupported region")
	ErrInvalidScenario = errors.New("unsupported scenario")
	ErrInvalidView     = errors.New("unsupported view")
	ErrNoViews         = errors.New("at least one view is required")
	ErrInvalidImage    = errors.New("source is not a decodable image")
	ErrNotOwner        = errors.New("job does not belong to user")
)

// maxSourceDim rejects absurd uploads before they reach the backend.
const maxSourceDim = 8192

// SubmitRequest carries the parameters of one job submission.
type SubmitRequest struct {
	UserID      string
	Region      string
	Scenario    string
	Views       []string
	Message     string
	SourceImage []byte
	Filename    string
}

// JobService implements job submission and owner-scoped queries. The
// executor owns all status transitions past queued.
type JobService struct {
	jobs      *repository.JobRepository
	store     storage.ObjectStore
	queue     queue.Queue
	urlExpiry time.Duration
	log       *logger.Logger
}

// NewJobService creates a JobService.
func NewJobService(jobs *repository.JobRepository, store storage.ObjectStore, q queue.Queue, storageCfg *config.StorageConfig, log *logger.Logger) *JobService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &JobService{
		jobs:      jobs,
		store:     store,
		queue:     q,
		urlExpiry: storageCfg.URLExpiry,
		log:       log.WithField(logger.FieldComponent, "jobs"),
	}
}

// Submit validates the request, persists the source image and job record,
// and enqueues the job ID for the executor. The returned job is in the
// queued state.
func (s *JobService) Submit(ctx context.Context, req *SubmitRequest) (*domain.Job, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	format, err := sniffImage(req.SourceImage)
	if err != nil {
		return nil, err
	}

	sourceKey, err := s.store.Save(ctx, sourceName(format), req.SourceImage, "image/"+format)
	if err != nil {
		return nil, fmt.Errorf("store source image: %w", err)
	}

	job := &domain.Job{
		UserID:    req.UserID,
		Region:    req.Region,
		Scenario:  req.Scenario,
		Views:     dedupeViews(req.Views),
		Message:   req.Message,
		SourceKey: sourceKey,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		// Orphaned source blobs are cleaned up out of band.
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		if _, ferr := s.jobs.Fail(ctx, job.ID, "failed to enqueue job"); ferr != nil && !errors.Is(ferr, repository.ErrInvalidTransition) {
			s.log.WithError(ferr).WithField(logger.FieldJobID, job.ID).Error("Failed to mark unenqueued job failed")
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.log.WithFields(logger.Fields{
		logger.FieldJobID:  job.ID,
		logger.FieldUserID: job.UserID,
		"scenario":         job.Scenario,
		"views":            []string(job.Views),
	}).Info("Job submitted")
	return job, nil
}

// Get returns one job owned by userID.
func (s *JobService) Get(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrNotOwner
	}
	return job, nil
}

// List returns the user's jobs, newest first.
func (s *JobService) List(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.jobs.ListByUser(ctx, userID, limit, offset)
}

// SetFavorite flips the owner-facing favorite flag.
func (s *JobService) SetFavorite(ctx context.Context, userID, jobID string, favorite bool) (*domain.Job, error) {
	if _, err := s.Get(ctx, userID, jobID); err != nil {
		return nil, err
	}
	return s.jobs.SetFavorite(ctx, jobID, favorite)
}

// Delete removes a job record and its blobs. Blob deletion is best-effort;
// a missing blob never blocks record removal.
func (s *JobService) Delete(ctx context.Context, userID, jobID string) error {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return err
	}
	for _, key := range job.Artifacts {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("Failed to delete artifact blob")
		}
	}
	if job.SourceKey != "" {
		if err := s.store.Delete(ctx, job.SourceKey); err != nil {
			s.log.WithError(err).WithField("key", job.SourceKey).Warn("Failed to delete source blob")
		}
	}
	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return err
	}
	s.log.WithFields(logger.Fields{
		logger.FieldJobID:  jobID,
		logger.FieldUserID: userID,
	}).Info("Job deleted")
	return nil
}

// Snapshot resolves the job's blob keys into URLs for API responses. It is
// the same representation pushed over the event stream.
func (s *JobService) Snapshot(ctx context.Context, job *domain.Job) *events.JobSnapshot {
	return snapshot(ctx, s.store, s.urlExpiry, job)
}

func validateSubmit(req *SubmitRequest) error {
	if !domain.ValidRegion(req.Region) {
		return fmt.Errorf("%w: %q", ErrInvalidRegion, req.Region)
	}
	if !domain.ValidScenario(req.Scenario) {
		return fmt.Errorf("%w: %q", ErrInvalidScenario, req.Scenario)
	}
	if len(req.Views) == 0 {
		return ErrNoViews
	}
	for _, view := range req.Views {
		if !domain.ValidView(view) {
			return fmt.Errorf("%w: %q", ErrInvalidView, view)
		}
	}
	return nil
}

// sniffImage decodes the header to confirm the payload is a real image and
// returns the detected format (jpeg, png, webp).
func sniffImage(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxSourceDim || cfg.Height > maxSourceDim {
		return "", fmt.Errorf("%w: unsupported dimensions %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	return format, nil
}

func sourceName(format string) string {
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return "originals/" + uuid.New().String() + "." + ext
}

func dedupeViews(views []string) domain.StringArray {
	out := make(domain.StringArray, 0, len(views))
	seen := make(map[string]struct{}, len(views))
	for _, v := range views {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
