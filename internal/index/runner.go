package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/localsearch/docsearch/internal/model"
)

const (
	pollInterval = 1 * time.Second
	errorBackoff = 5 * time.Second
)

// Runner is the single background worker that polls the metadata store for
// pending jobs and dispatches them to the Service.
type Runner struct {
	Service *Service

	ctx      context.Context
	stop     context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Start spawns the polling loop in its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	// Jobs run on a context that Stop does not cancel; only the loop
	// watches r.stop.
	r.ctx = context.WithoutCancel(ctx)
	r.stop, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop()
}

// Stop signals the loop to exit and waits for it, without interrupting an
// in-flight job.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
	})
}

func (r *Runner) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop.Done():
			return
		default:
		}

		pending, err := r.Service.Metadata.GetPendingJobs(r.ctx, 1)
		if err != nil {
			slog.Error("job runner failed to poll for pending jobs", slog.Any("error", err))
			if !r.sleep(errorBackoff) {
				return
			}
			continue
		}

		if len(pending) == 0 {
			if !r.sleep(pollInterval) {
				return
			}
			continue
		}

		r.process(pending[0])
	}
}

// sleep blocks for d or until Stop is called, whichever comes first. It
// returns false if the runner was stopped.
func (r *Runner) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.stop.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runner) process(job *model.Job) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("job runner recovered from panic", slog.Any("panic", rec), slog.String("job_id", job.ID))
			job.Status = model.JobStatusFailed
			job.Error = "internal error"
			_ = r.Service.Metadata.UpsertJob(r.ctx, job)
		}
	}()

	var err error
	switch job.Type {
	case model.JobTypeScanSource:
		err = r.Service.ScanSource(r.ctx, job.Payload["source_id"], job)
	case model.JobTypeIndexDoc:
		err = r.runIndexDoc(job)
	case model.JobTypeReindexAll:
		err = r.runReindexAll(job)
	default:
		err = nil
	}

	if err != nil {
		job.Status = model.JobStatusFailed
		job.Error = err.Error()
		_ = r.Service.Metadata.UpsertJob(r.ctx, job)
	}
}

// runIndexDoc wraps IndexDocument, which does not manage job status itself.
func (r *Runner) runIndexDoc(job *model.Job) error {
	job.Status = model.JobStatusRunning
	if err := r.Service.Metadata.UpsertJob(r.ctx, job); err != nil {
		return err
	}
	if err := r.Service.IndexDocument(r.ctx, job.Payload["doc_id"]); err != nil {
		return err
	}
	job.Status = model.JobStatusDone
	job.Progress = 1.0
	return r.Service.Metadata.UpsertJob(r.ctx, job)
}

func (r *Runner) runReindexAll(job *model.Job) error {
	job.Status = model.JobStatusRunning
	if err := r.Service.Metadata.UpsertJob(r.ctx, job); err != nil {
		return err
	}

	sources, err := r.Service.Metadata.ListSources(r.ctx)
	if err != nil {
		return err
	}

	for i, source := range sources {
		subJob := &model.Job{
			ID:      job.ID,
			Type:    model.JobTypeScanSource,
			Status:  model.JobStatusRunning,
			Payload: job.Payload,
		}
		if err := r.Service.ScanSource(r.ctx, source.ID, subJob); err != nil {
			return err
		}
		job.Progress = float64(i+1) / float64(len(sources))
		if err := r.Service.Metadata.UpsertJob(r.ctx, job); err != nil {
			return err
		}
	}

	job.Status = model.JobStatusDone
	job.Progress = 1.0
	return r.Service.Metadata.UpsertJob(r.ctx, job)
}
