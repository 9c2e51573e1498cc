// Package service contains the application use-cases sitting between the
// transport layer and the repositories: job submission, the executor worker
// pool, and job queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/events"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/generation"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/queue"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/storage"
)

// Executor drains the work queue and drives claimed jobs to a terminal
// state. Generation failures are retried in-process up to MaxRetries times;
// a retried job keeps its processing claim across attempts.
type Executor struct {
	jobs    *repository.JobRepository
	store   storage.ObjectStore
	queue   queue.Queue
	backend generation.Backend
	bus     events.Publisher

	workers    int
	maxRetries int
	retryDelay time.Duration
	stepCount  int
	urlExpiry  time.Duration

	log *logger.Logger
	wg  sync.WaitGroup
}

// NewExecutor creates an Executor. Zero or negative config values fall back
// to single-worker, no-retry defaults.
func NewExecutor(
	jobs *repository.JobRepository,
	store storage.ObjectStore,
	q queue.Queue,
	backend generation.Backend,
	bus events.Publisher,
	execCfg *config.ExecutorConfig,
	genCfg *config.GenerationConfig,
	urlExpiry time.Duration,
	log *logger.Logger,
) *Executor {
	workers := execCfg.Workers
	if workers <= 0 {
		workers = 1
	}
	maxRetries := execCfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	stepCount := genCfg.StepCount
	if stepCount <= 0 {
		stepCount = 30
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Executor{
		jobs:       jobs,
		store:      store,
		queue:      q,
		backend:    backend,
		bus:        bus,
		workers:    workers,
		maxRetries: maxRetries,
		retryDelay: execCfg.RetryDelay,
		stepCount:  stepCount,
		urlExpiry:  urlExpiry,
		log:        log.WithField(logger.FieldComponent, "executor"),
	}
}

// Start launches the worker pool. Workers exit when ctx is canceled or the
// queue is closed; Wait blocks until they are done.
func (e *Executor) Start(ctx context.Context) {
	e.log.WithField("workers", e.workers).Info("Starting executor")
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func(worker int) {
			defer e.wg.Done()
			e.run(ctx, worker)
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) run(ctx context.Context, worker int) {
	log := e.log.WithField("worker", worker)
	for {
		d, err := e.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.Canceled) {
				log.Debug("Worker stopping")
				return
			}
			log.WithError(err).Error("Failed to dequeue job")
			continue
		}

		jctx := logger.SetJobID(e.log.WithContext(ctx), d.JobID)
		e.handle(jctx, d)

		if err := e.queue.Ack(ctx, d); err != nil {
			log.WithError(err).WithField(logger.FieldJobID, d.JobID).
				Warn("Failed to ack delivery")
		}
	}
}

// handle drives one delivery to a terminal job state. Every outcome,
// including failure, is final for the delivery: redelivered duplicates find
// the job out of queued and are skipped.
func (e *Executor) handle(ctx context.Context, d *queue.Delivery) {
	started := time.Now()

	job, err := e.jobs.ClaimForProcessing(ctx, d.JobID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			logger.CtxDebug(ctx, "Skipping delivery for missing job")
		case errors.Is(err, repository.ErrAlreadyClaimed):
			logger.CtxDebug(ctx, "Skipping delivery for already claimed job")
		default:
			logger.CtxError(ctx, "Failed to claim job: %v", err)
		}
		return
	}

	ctx = logger.SetUserID(ctx, job.UserID)
	logger.CtxInfo(ctx, "Claimed job for processing")
	e.publishStatus(ctx, job)

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries+1; attempt++ {
		actx := logger.WithField(ctx, logger.FieldAttempt, attempt)
		lastErr = e.generateAll(actx, job)
		if lastErr == nil {
			completed, err := e.jobs.Complete(ctx, job.ID)
			if err != nil {
				logger.CtxError(ctx, "Failed to complete job: %v", err)
				return
			}
			logger.FromContext(ctx).WithField(logger.FieldDurationMs, time.Since(started).Milliseconds()).
				Info("Job completed")
			e.publishStatus(ctx, completed)
			return
		}
		if errors.Is(lastErr, repository.ErrInvalidTransition) {
			// The job left processing under us; nothing left to do here.
			logger.CtxError(ctx, "Job state changed mid-attempt: %v", lastErr)
			return
		}
		logger.CtxWarn(actx, "Generation attempt failed: %v", lastErr)
		if attempt <= e.maxRetries && e.retryDelay > 0 {
			select {
			case <-ctx.Done():
				e.fail(ctx, job, lastErr.Error())
				return
			case <-time.After(e.retryDelay):
			}
		}
	}

	e.fail(ctx, job, lastErr.Error())
}

// generateAll reads the source image and produces every requested view in
// order. Source read errors are retryable like backend errors, so the read
// happens inside the attempt. The first view error aborts the attempt;
// already produced views stay recorded and are simply regenerated on retry.
func (e *Executor) generateAll(ctx context.Context, job *domain.Job) error {
	source, err := e.store.Open(ctx, job.SourceKey)
	if err != nil {
		return fmt.Errorf("read source image: %w", err)
	}
	sourceURL, err := e.store.URL(ctx, job.SourceKey, e.urlExpiry)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to build source URL, backend will receive raw bytes: %v", err)
		sourceURL = ""
	}

	for _, view := range job.Views {
		if err := e.generateView(ctx, job, view, source, sourceURL); err != nil {
			return fmt.Errorf("view %s: %w", view, err)
		}
	}
	return nil
}

func (e *Executor) generateView(ctx context.Context, job *domain.Job, view string, source []byte, sourceURL string) error {
	vctx := logger.WithField(ctx, logger.FieldView, view)
	logger.CtxInfo(vctx, "Generating view")

	req := &generation.Request{
		SourceImage: source,
		SourceURL:   sourceURL,
		Region:      job.Region,
		Scenario:    job.Scenario,
		View:        view,
		Message:     job.Message,
		StepCount:   e.stepCount,
	}
	progress := func(step, totalSteps int) {
		e.bus.Publish(job.UserID, events.NewJobProgress(job.ID, view, step, totalSteps))
	}

	data, err := e.backend.Generate(vctx, req, progress)
	if err != nil {
		return err
	}

	key, err := e.store.Save(vctx, domain.ArtifactKey(job.ID, view), data, "image/jpeg")
	if err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	updated, err := e.jobs.RecordArtifact(vctx, job.ID, view, key)
	if err != nil {
		return fmt.Errorf("record artifact: %w", err)
	}
	*job = *updated

	logger.FromContext(vctx).WithField(logger.FieldSize, len(data)).Info("View generated")
	e.publishStatus(vctx, job)
	return nil
}

func (e *Executor) fail(ctx context.Context, job *domain.Job, detail string) {
	failed, err := e.jobs.Fail(ctx, job.ID, detail)
	if err != nil {
		logger.CtxError(ctx, "Failed to mark job failed: %v", err)
		return
	}
	logger.CtxError(ctx, "Job failed: %s", failed.ErrorMessage)
	e.publishStatus(ctx, failed)
}

func (e *Executor) publishStatus(ctx context.Context, job *domain.Job) {
	e.bus.Publish(job.UserID, events.NewJobStatus(snapshot(ctx, e.store, e.urlExpiry, job)))
}
