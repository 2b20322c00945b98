// Package services – ActivityRecorder
//
// This file implements best-effort request recording: one structured log
// entry appended at request start, patched with status and latency once the
// response has been flushed. Writes go through a single background worker
// fed by a bounded queue, so recording can never block or fail the primary
// request path; when the queue is full the job is dropped and counted in
// the logs.
//
// Deliberate behavior change from the system this replaces: a recording
// failure (including an unresolvable account) never terminates the request.
// Failures are logged and swallowed.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
)

// RequestSnapshot is the request-start view recorded for an account.
type RequestSnapshot struct {
	AccountID  string
	Method     string
	Path       string
	Query      string
	BodySample string
	UserAgent  string
	RemoteIP   string
}

// activityJob is one queued write: either the initial append or the
// status/latency patch.
type activityJob struct {
	entry   *domain.ActivityLog
	patchID string
	status  int
	latency time.Duration
}

// ActivityRecorder persists request activity asynchronously.
type ActivityRecorder struct {
	db  *gorm.DB
	log zerolog.Logger

	jobs chan activityJob
	wg   sync.WaitGroup
	once sync.Once
}

// NewActivityRecorder constructs a recorder with the given queue depth.
// A depth <= 0 falls back to 1024.
func NewActivityRecorder(db *gorm.DB, log zerolog.Logger, queueDepth int) *ActivityRecorder {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	return &ActivityRecorder{
		db:   db,
		log:  log,
		jobs: make(chan activityJob, queueDepth),
	}
}

// Start launches the single writer goroutine. Jobs are applied in enqueue
// order, which guarantees an entry's append is processed before its patch.
func (r *ActivityRecorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case job, ok := <-r.jobs:
				if !ok {
					return
				}
				r.apply(ctx, job)
			case <-ctx.Done():
				// Drain what is already queued, then stop.
				for {
					select {
					case job, ok := <-r.jobs:
						if !ok {
							return
						}
						r.apply(context.Background(), job)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the queue and waits for the worker to finish the backlog.
func (r *ActivityRecorder) Stop() {
	r.once.Do(func() { close(r.jobs) })
	r.wg.Wait()
}

// RecordStart enqueues the request-start entry and returns its id so the
// caller can patch it later. The returned id is valid even when the queue
// is saturated and the entry is dropped; the later patch then becomes a
// logged no-op.
func (r *ActivityRecorder) RecordStart(snap RequestSnapshot) string {
	id := uuid.NewString()
	entry := &domain.ActivityLog{
		ID:         id,
		AccountID:  snap.AccountID,
		Method:     snap.Method,
		Path:       snap.Path,
		Query:      snap.Query,
		BodySample: snap.BodySample,
		UserAgent:  snap.UserAgent,
		RemoteIP:   snap.RemoteIP,
	}
	r.enqueue(activityJob{entry: entry})
	return id
}

// RecordFinish enqueues the status/latency patch for a previously started
// entry.
func (r *ActivityRecorder) RecordFinish(id string, status int, latency time.Duration) {
	if id == "" {
		return
	}
	r.enqueue(activityJob{patchID: id, status: status, latency: latency})
}

// enqueue never blocks: a full queue drops the job.
func (r *ActivityRecorder) enqueue(job activityJob) {
	select {
	case r.jobs <- job:
	default:
		r.log.Warn().Msg("activity queue full, dropping record")
	}
}

// Count returns the total number of requests recorded for the account. The
// figure trails reality by whatever is still queued.
func (r *ActivityRecorder) Count(ctx context.Context, accountID string) (int64, error) {
	return repo.CountActivity(ctx, r.db, accountID)
}

func (r *ActivityRecorder) apply(ctx context.Context, job activityJob) {
	if job.entry != nil {
		if err := repo.CreateActivityLog(ctx, r.db, job.entry); err != nil {
			r.log.Error().Err(err).Str("activity_id", job.entry.ID).Msg("append activity log failed")
		}
		return
	}
	if err := repo.PatchActivityLog(ctx, r.db, job.patchID, job.status, job.latency); err != nil {
		r.log.Error().Err(err).Str("activity_id", job.patchID).Msg("patch activity log failed")
	}
}
