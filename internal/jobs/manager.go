package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anishko/Ekho/internal/domain"
	"github.com/anishko/Ekho/internal/providers/veo"
)

// Config bounds the background runner. Zero values fall back to defaults so a
// Manager built with Config{} behaves sensibly.
type Config struct {
	PollInterval        time.Duration
	PollTimeout         time.Duration
	OperationTimeout    time.Duration
	MaxTransientRetries int
	RetryBackoff        time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 30 * time.Second
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 10 * time.Minute
	}
	if c.MaxTransientRetries <= 0 {
		c.MaxTransientRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	return c
}

// Manager owns job creation, background progression and status reads. Start
// returns as soon as the queued record exists; one goroutine per job drives
// the external operation to a terminal state. Each job's record is written by
// its own runner only, so writes to a single record are totally ordered.
type Manager struct {
	store  Store
	client veo.Client
	logger zerolog.Logger
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	watchers    map[int]chan domain.Job
	nextWatcher int
}

// NewManager wires the lifecycle manager to its collaborators.
func NewManager(store Store, client veo.Client, logger zerolog.Logger, cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		client:   client,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		watchers: make(map[int]chan domain.Job),
	}
}

// Start creates a queued job and launches its background runner. The call
// returns once the record is visible in the store; it never waits on the
// external backend. Every call creates a new job, identical parameters are
// not deduplicated.
func (m *Manager) Start(ctx context.Context, ownerID string, kind domain.JobKind, params domain.VideoParams) (string, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    domain.JobStatusQueued,
		Progress:  0,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Put(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	m.logger.Info().
		Str("job_id", job.ID).
		Str("owner_id", ownerID).
		Str("kind", string(kind)).
		Msg("jobs: created")
	m.notify(*job)

	m.wg.Add(1)
	go m.run(job.ID)
	return job.ID, nil
}

// Status returns the latest committed record for the job.
func (m *Manager) Status(ctx context.Context, id string) (*domain.Job, error) {
	return m.store.Get(ctx, id)
}

// ListForOwner returns the owner's jobs, oldest first.
func (m *Manager) ListForOwner(ctx context.Context, ownerID string) ([]*domain.Job, error) {
	return m.store.ListByOwner(ctx, ownerID)
}

// Watch registers a watcher that receives a snapshot on every transition.
// Slow watchers are skipped rather than blocking the runners. The returned
// func unregisters the watcher and closes the channel.
func (m *Manager) Watch() (<-chan domain.Job, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextWatcher
	m.nextWatcher++
	ch := make(chan domain.Job, 16)
	m.watchers[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(existing)
		}
	}
}

// Close stops all background runners and waits for them to exit. In-flight
// jobs are left in whatever state they last committed; this is the only path
// on which a job may remain non-terminal.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) notify(job domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.watchers {
		select {
		case ch <- job:
		default:
		}
	}
}

// run drives one job from queued to a terminal state. Every code path ends in
// succeeded or failed except manager shutdown.
func (m *Manager) run(id string) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("job_id", id).Interface("panic", r).Msg("jobs: runner panicked")
			m.fail(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	job, err := m.transition(id, func(j *domain.Job) {
		j.Status = domain.JobStatusRunning
	})
	if err != nil {
		m.logger.Error().Err(err).Str("job_id", id).Msg("jobs: failed to mark running")
		return
	}

	op, err := m.begin(id, job.Params)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.fail(id, err.Error())
		return
	}

	deadline := time.NewTimer(m.cfg.OperationTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	retries := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-deadline.C:
			m.fail(id, fmt.Sprintf("generation did not finish within %s", m.cfg.OperationTimeout))
			return
		case <-ticker.C:
		}

		res, err := m.pollOnce(op)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			if veo.IsTransient(err) && retries < m.cfg.MaxTransientRetries {
				retries++
				m.logger.Warn().Err(err).Str("job_id", id).Int("retry", retries).Msg("jobs: transient poll failure")
				if !m.sleep(m.backoff(retries)) {
					return
				}
				continue
			}
			m.fail(id, err.Error())
			return
		}
		retries = 0

		switch res.State {
		case veo.StatePending:
			if _, err := m.transition(id, func(j *domain.Job) {
				if p := clampProgress(res.Progress); p > j.Progress {
					j.Progress = p
				}
			}); err != nil {
				m.logger.Error().Err(err).Str("job_id", id).Msg("jobs: progress update failed")
			}
		case veo.StateDone:
			if res.ArtifactRef == "" {
				m.fail(id, "backend reported success without an artifact")
				return
			}
			m.succeed(id, res.ArtifactRef)
			return
		case veo.StateError:
			detail := res.ErrorDetail
			if detail == "" {
				detail = "generation failed"
			}
			m.fail(id, detail)
			return
		default:
			m.fail(id, fmt.Sprintf("backend reported unknown state %q", res.State))
			return
		}
	}
}

// begin starts the remote operation, retrying transient failures within the
// configured budget.
func (m *Manager) begin(id string, params domain.VideoParams) (*veo.Operation, error) {
	refs := append(append([]string(nil), params.ReferenceImages...), params.FaceCaptures...)
	req := veo.Params{
		Prompt:          params.Prompt,
		ReferenceImages: refs,
		DurationSeconds: params.DurationSeconds,
		Style:           params.Style,
		RequestID:       id,
	}
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(m.ctx, m.cfg.PollTimeout)
		op, err := m.client.Begin(callCtx, req)
		cancel()
		if err == nil {
			return op, nil
		}
		if m.ctx.Err() != nil {
			return nil, m.ctx.Err()
		}
		if !veo.IsTransient(err) || attempt >= m.cfg.MaxTransientRetries {
			return nil, err
		}
		m.logger.Warn().Err(err).Str("job_id", id).Int("retry", attempt+1).Msg("jobs: transient begin failure")
		if !m.sleep(m.backoff(attempt + 1)) {
			return nil, m.ctx.Err()
		}
	}
}

func (m *Manager) pollOnce(op *veo.Operation) (*veo.PollResult, error) {
	callCtx, cancel := context.WithTimeout(m.ctx, m.cfg.PollTimeout)
	defer cancel()
	return m.client.Poll(callCtx, op)
}

// transition applies a read-modify-write on the job record. Terminal records
// are never modified; UpdatedAt is refreshed on every committed write.
func (m *Manager) transition(id string, mutate func(*domain.Job)) (*domain.Job, error) {
	job, err := m.store.Get(m.ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}
	mutate(job)
	job.Progress = clampProgress(job.Progress)
	job.UpdatedAt = time.Now().UTC()
	if job.UpdatedAt.Before(job.CreatedAt) {
		job.UpdatedAt = job.CreatedAt
	}
	if err := m.store.Put(m.ctx, job); err != nil {
		return nil, err
	}
	m.notify(*job)
	return job, nil
}

func (m *Manager) succeed(id, outputRef string) {
	if _, err := m.transition(id, func(j *domain.Job) {
		j.Status = domain.JobStatusSucceeded
		j.Progress = 100
		j.OutputRef = outputRef
		j.ErrorMessage = ""
	}); err != nil {
		m.logger.Error().Err(err).Str("job_id", id).Msg("jobs: failed to mark succeeded")
		return
	}
	m.logger.Info().Str("job_id", id).Str("output_ref", outputRef).Msg("jobs: succeeded")
}

func (m *Manager) fail(id, detail string) {
	if _, err := m.transition(id, func(j *domain.Job) {
		j.Status = domain.JobStatusFailed
		j.ErrorMessage = detail
		j.OutputRef = ""
	}); err != nil {
		m.logger.Error().Err(err).Str("job_id", id).Msg("jobs: failed to mark failed")
		return
	}
	m.logger.Warn().Str("job_id", id).Str("error", detail).Msg("jobs: failed")
}

// sleep waits for d or manager shutdown, reporting whether the full wait
// elapsed.
func (m *Manager) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Manager) backoff(attempt int) time.Duration {
	d := m.cfg.RetryBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
