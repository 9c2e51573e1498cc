package service

import (
	"context"
	"time"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/events"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/storage"
)

// snapshot converts a job record into its client-facing view, resolving blob
// keys into access URLs. URL resolution failures are logged and leave the
// field empty rather than blocking the event.
func snapshot(ctx context.Context, store storage.ObjectStore, urlExpiry time.Duration, job *domain.Job) *events.JobSnapshot {
	snap := &events.JobSnapshot{
		ID:           job.ID,
		UserID:       job.UserID,
		Region:       job.Region,
		Scenario:     job.Scenario,
		Views:        job.Views,
		Message:      job.Message,
		Status:       job.Status,
		Artifacts:    make(map[string]string, len(job.Artifacts)),
		ErrorMessage: job.ErrorMessage,
		Favorite:     job.Favorite,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	if job.SourceKey != "" {
		url, err := store.URL(ctx, job.SourceKey, urlExpiry)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("key", job.SourceKey).
				Warn("Failed to resolve source image URL")
		} else {
			snap.SourceURL = url
		}
	}
	for view, key := range job.Artifacts {
		url, err := store.URL(ctx, key, urlExpiry)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("key", key).
				Warn("Failed to resolve artifact URL")
			continue
		}
		snap.Artifacts[view] = url
	}
	return snap
}
