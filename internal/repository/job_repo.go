package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no job exists for the given ID.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyClaimed is returned by ClaimForProcessing when the job has
	// left the queued state. Callers treat it as "skip", not as a failure.
	ErrAlreadyClaimed = errors.New("job already claimed")

	// ErrInvalidTransition is returned when a terminal transition is requested
	// on a job that is not in processing. It indicates a programming bug.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobRepository is the single source of truth for job state. Status moves
// forward only: queued -> processing -> completed | failed.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record in the queued state. A missing ID is
// assigned; Status and Artifacts are forced to their initial values.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = domain.JobStatusQueued
	if job.Artifacts == nil {
		job.Artifacts = domain.ArtifactMap{}
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// ClaimForProcessing atomically moves a queued job to processing. Exactly one
// caller racing on the same job ID observes success; the rest receive
// ErrAlreadyClaimed. A missing job yields ErrNotFound.
func (r *JobRepository) ClaimForProcessing(ctx context.Context, jobID string) (*domain.Job, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status = ?", jobID, domain.JobStatusQueued).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusProcessing,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// The row was either absent or already out of queued.
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", jobID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to probe job after claim miss: %w", err)
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyClaimed
	}
	return r.GetByID(ctx, jobID)
}

// RecordArtifact stores the blob key for a completed view. Invoked only by
// the executor holding the claim, so read-then-write is sufficient.
func (r *JobRepository) RecordArtifact(ctx context.Context, jobID, view, blobKey string) (*domain.Job, error) {
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Artifacts == nil {
		job.Artifacts = domain.ArtifactMap{}
	}
	job.Artifacts[view] = blobKey
	job.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}
	return job, nil
}

// Complete moves a processing job to completed. Completing a job in any other
// state returns ErrInvalidTransition.
func (r *JobRepository) Complete(ctx context.Context, jobID string) (*domain.Job, error) {
	return r.finish(ctx, jobID, domain.JobStatusCompleted, "")
}

// Fail moves a processing job to failed, recording a bounded error detail.
// Failing a job in any other state returns ErrInvalidTransition.
func (r *JobRepository) Fail(ctx context.Context, jobID, errorDetail string) (*domain.Job, error) {
	return r.finish(ctx, jobID, domain.JobStatusFailed, domain.TruncateError(errorDetail))
}

func (r *JobRepository) finish(ctx context.Context, jobID string, status domain.JobStatus, errorDetail string) (*domain.Job, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status = ?", jobID, domain.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorDetail,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to finish job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", jobID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to probe job after finish miss: %w", err)
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: cannot move job %s to %s", ErrInvalidTransition, jobID, status)
	}
	return r.GetByID(ctx, jobID)
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListByUser retrieves a user's jobs, newest first.
func (r *JobRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// SetFavorite updates the owner-facing favorite flag. Orthogonal to the
// state machine.
func (r *JobRepository) SetFavorite(ctx context.Context, jobID string, favorite bool) (*domain.Job, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"favorite":   favorite,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, jobID)
}

// Delete removes a job record. Blob cleanup is the caller's responsibility.
func (r *JobRepository) Delete(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Delete(&domain.Job{}, "id = ?", jobID).Error
}
