// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parsejob runs document extractions as background jobs that
// callers poll. Submissions for a document that is already cached return
// at once; submissions for a document with a job in flight join that job.
package parsejob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/papermap/internal/contentcache"
	"github.com/pdiddy/papermap/internal/pdftext"
	"github.com/pdiddy/papermap/pkg/types"
)

const (
	defaultMaxJobs = 4

	// startedProgress is reported as soon as a job leaves pending.
	startedProgress = 5
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("parse job manager is closed")

// Extractor turns the document at sourceURL into text.
type Extractor interface {
	Extract(ctx context.Context, sourceURL string, progress pdftext.ProgressFunc) (string, error)
}

// Manager owns every job. Callers only ever see snapshots.
type Manager struct {
	extractor Extractor
	cache     contentcache.Cache
	slots     *semaphore.Weighted
	logger    *zap.Logger

	// ctx bounds running jobs; it is cancelled only by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	jobs       map[string]*job
	byDocument map[string]*job
}

type job struct {
	id         string
	documentID string
	sourceURL  string
	status     types.JobStatus
	progress   int
	// content is held only when the cache write failed; otherwise the
	// cache is the single copy.
	content    string
	err        string
	createdAt  time.Time
	updatedAt  time.Time
}

// New returns a Manager that runs at most maxJobs extractions at once.
// Extra jobs stay pending until a slot frees.
func New(extractor Extractor, cache contentcache.Cache, maxJobs int, logger *zap.Logger) *Manager {
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		extractor:  extractor,
		cache:      cache,
		slots:      semaphore.NewWeighted(int64(maxJobs)),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]*job),
		byDocument: make(map[string]*job),
	}
}

// Submit requests extraction of documentID from sourceURL. It never waits
// for extraction.
func (m *Manager) Submit(ctx context.Context, documentID, sourceURL string) (types.SubmitResult, error) {
	documentID = strings.TrimSpace(documentID)
	sourceURL = strings.TrimSpace(sourceURL)
	if documentID == "" {
		return types.SubmitResult{}, fmt.Errorf("%w: document id cannot be empty", types.ErrValidation)
	}
	if sourceURL == "" {
		return types.SubmitResult{}, fmt.Errorf("%w: source url cannot be empty", types.ErrValidation)
	}

	content, ok, err := m.cache.Get(ctx, documentID)
	if err != nil {
		m.logger.Warn("content cache read failed", zap.String("document_id", documentID), zap.Error(err))
	}
	if ok {
		return types.SubmitResult{
			DocumentID: documentID,
			Status:     types.JobCompleted,
			Progress:   100,
			Cached:     true,
			Content:    content,
		}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return types.SubmitResult{}, ErrClosed
	}

	// A completed job whose text is no longer cached (evicted) is rerun.
	if j, ok := m.byDocument[documentID]; ok && j.reusable() {
		res := types.SubmitResult{
			JobID:      j.id,
			DocumentID: documentID,
			Status:     j.status,
			Progress:   j.progress,
		}
		if j.status == types.JobCompleted {
			res.Cached = true
			res.Content = j.content
		}
		return res, nil
	}

	now := time.Now().UTC()
	j := &job{
		id:         uuid.NewString(),
		documentID: documentID,
		sourceURL:  sourceURL,
		status:     types.JobPending,
		createdAt:  now,
		updatedAt:  now,
	}
	m.jobs[j.id] = j
	m.byDocument[documentID] = j

	m.wg.Add(1)
	go m.run(j)

	m.logger.Info("parse job submitted",
		zap.String("job_id", j.id),
		zap.String("document_id", documentID),
		zap.String("url", sourceURL))
	return types.SubmitResult{
		JobID:      j.id,
		DocumentID: documentID,
		Status:     types.JobPending,
	}, nil
}

// Status returns a snapshot of the job, or types.ErrNotFound. A completed
// job's content is read back from the cache.
func (m *Manager) Status(ctx context.Context, jobID string) (types.JobSnapshot, error) {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return types.JobSnapshot{}, fmt.Errorf("%w: job %s", types.ErrNotFound, jobID)
	}
	snap := j.snapshot()
	m.mu.Unlock()

	if snap.Status == types.JobCompleted && snap.Content == "" {
		content, ok, err := m.cache.Get(ctx, snap.DocumentID)
		switch {
		case err != nil:
			m.logger.Warn("content cache read failed", zap.String("job_id", jobID), zap.Error(err))
		case !ok:
			m.logger.Warn("completed job content no longer cached", zap.String("job_id", jobID), zap.String("document_id", snap.DocumentID))
		default:
			snap.Content = content
		}
	}
	return snap, nil
}

// Close stops accepting jobs, cancels the ones still running and waits for
// them to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *Manager) run(j *job) {
	defer m.wg.Done()
	logger := m.logger.With(zap.String("job_id", j.id), zap.String("document_id", j.documentID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("parse job panicked", zap.Any("panic", r))
			m.fail(j, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := m.slots.Acquire(m.ctx, 1); err != nil {
		m.fail(j, err.Error())
		return
	}
	defer m.slots.Release(1)

	m.start(j)
	started := time.Now()
	content, err := m.extractor.Extract(m.ctx, j.sourceURL, func(pct int) { m.advance(j, pct) })
	if err == nil && content == "" {
		err = pdftext.ErrNoText
	}
	if err != nil {
		logger.Warn("parse job failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		m.fail(j, err.Error())
		return
	}

	held := ""
	if _, err := m.cache.Put(m.ctx, j.documentID, content); err != nil {
		logger.Warn("caching extracted content failed, holding it in the job", zap.Error(err))
		held = content
	}
	m.complete(j, held)
	logger.Info("parse job completed", zap.Int("chars", len(content)), zap.Duration("elapsed", time.Since(started)))
}

func (m *Manager) start(j *job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.status != types.JobPending {
		return
	}
	j.status = types.JobProcessing
	j.progress = max(j.progress, startedProgress)
	j.updatedAt = time.Now().UTC()
}

// advance raises progress while processing. 100 is reserved for completion.
func (m *Manager) advance(j *job, pct int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.status != types.JobProcessing {
		return
	}
	pct = min(pct, 99)
	if pct <= j.progress {
		return
	}
	j.progress = pct
	j.updatedAt = time.Now().UTC()
}

func (m *Manager) complete(j *job, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = types.JobCompleted
	j.progress = 100
	j.content = content
	j.updatedAt = time.Now().UTC()
}

func (m *Manager) fail(j *job, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	if msg == "" {
		msg = "extraction failed"
	}
	j.status = types.JobFailed
	j.err = msg
	j.updatedAt = time.Now().UTC()
}

// reusable reports whether a resubmission for the document should join j.
func (j *job) reusable() bool {
	switch j.status {
	case types.JobPending, types.JobProcessing:
		return true
	case types.JobCompleted:
		return j.content != ""
	default:
		return false
	}
}

func (j *job) snapshot() types.JobSnapshot {
	s := types.JobSnapshot{
		JobID:      j.id,
		DocumentID: j.documentID,
		SourceURL:  j.sourceURL,
		Status:     j.status,
		Progress:   j.progress,
		CreatedAt:  j.createdAt,
		UpdatedAt:  j.updatedAt,
	}
	switch j.status {
	case types.JobCompleted:
		s.Content = j.content
	case types.JobFailed:
		s.Error = j.err
	}
	return s
}
