package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"cmssync/internal/logging"
)

// Handler executes one attempt of a job. The returned value is stored as the
// job result. Returning a backoff.Permanent error skips remaining attempts.
type Handler func(ctx context.Context, job Job) (any, error)

// Config holds processor settings.
type Config struct {
	MaxWorkers         int
	QueueSize          int
	DefaultTimeout     time.Duration
	DefaultMaxAttempts int
	RetryDelay         time.Duration
	Retention          time.Duration
	CleanupInterval    time.Duration
	// NewBackOff builds the retry schedule for one job. Defaults to a LinearBackOff of RetryDelay.
	NewBackOff func() backoff.BackOff
}

func (c *Config) applyDefaults() {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.DefaultMaxAttempts <= 0 {
		c.DefaultMaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.NewBackOff == nil {
		step := c.RetryDelay
		c.NewBackOff = func() backoff.BackOff { return NewLinearBackOff(step) }
	}
}

// Hooks observe job transitions. They run outside the processor lock and
// receive copies.
type Hooks struct {
	OnStatus func(Job)
	// OnFailed fires once when a job fails permanently.
	OnFailed func(Job)
}

// Stats summarizes the processor state.
type Stats struct {
	Queued     int    `json:"queued"`
	Waiting    int    `json:"waitingRetry"`
	Active     int    `json:"active"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Cancelled  int    `json:"cancelled"`
	MaxWorkers int    `json:"maxWorkers"`
	Submitted  uint64 `json:"submitted"`
	Retried    uint64 `json:"retried"`
	Swept      uint64 `json:"swept"`
}

type attemptResult struct {
	value any
	err   error
}

// Processor is the background job processor. Create with New, register
// handlers, then call Run.
type Processor struct {
	cfg    Config
	hooks  Hooks
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	handlers map[string]Handler
	jobs     map[string]*Job
	queue    *tieredQueue
	active   map[string]context.CancelFunc
	waiting  map[string]*time.Timer
	backoffs map[string]backoff.BackOff
	baseCtx  context.Context
	stopped  bool

	submitted uint64
	retried   uint64
	swept     uint64

	wake chan struct{}
	wg   sync.WaitGroup
}

// New creates a processor. It does nothing until Run is called.
func New(cfg Config, hooks Hooks, logger *log.Logger) *Processor {
	cfg.applyDefaults()
	return &Processor{
		cfg:      cfg,
		hooks:    hooks,
		logger:   logging.Component(logger, "jobs"),
		now:      time.Now,
		handlers: make(map[string]Handler),
		jobs:     make(map[string]*Job),
		queue:    newTieredQueue(),
		active:   make(map[string]context.CancelFunc),
		waiting:  make(map[string]*time.Timer),
		backoffs: make(map[string]backoff.BackOff),
		wake:     make(chan struct{}, 1),
	}
}

// Register binds a handler to a job type.
func (p *Processor) Register(jobType string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[jobType] = h
}

// Enqueue adds a job at the back of its priority tier and returns its id.
func (p *Processor) Enqueue(jobType string, payload any, opts Options) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode job payload: %w", err)
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return "", ErrStopped
	}
	if _, ok := p.handlers[jobType]; !ok {
		p.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownType, jobType)
	}
	if p.queue.len()+len(p.waiting) >= p.cfg.QueueSize {
		p.mu.Unlock()
		return "", ErrQueueFull
	}

	j := &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     raw,
		Priority:    opts.Priority,
		MaxAttempts: opts.MaxAttempts,
		Timeout:     opts.Timeout,
		Status:      StatusQueued,
		CreatedAt:   p.now(),
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = p.cfg.DefaultMaxAttempts
	}
	if j.Timeout <= 0 {
		j.Timeout = p.cfg.DefaultTimeout
	}
	p.jobs[j.ID] = j
	p.queue.pushBack(j)
	p.submitted++
	snapshot := j.clone()
	p.mu.Unlock()

	p.notify(snapshot)
	p.signal()
	return j.ID, nil
}

// Run dispatches jobs until ctx is cancelled, then stops every attempt and
// waits for the workers to return.
func (p *Processor) Run(ctx context.Context) {
	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()

	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()

	p.logger.Info("job_processor_started", "max_workers", p.cfg.MaxWorkers)
	for {
		p.dispatch()
		select {
		case <-ctx.Done():
			p.shutdown()
			p.logger.Info("job_processor_stopped")
			return
		case <-p.wake:
		case <-ticker.C:
			p.Cleanup()
		}
	}
}

// Every enqueues jobType each interval until ctx is done.
func (p *Processor) Every(ctx context.Context, interval time.Duration, jobType string, payload any, opts Options) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := p.Enqueue(jobType, payload, opts); err != nil && !errors.Is(err, ErrStopped) {
					p.logger.Warn("job_schedule_failed", "job_type", jobType, "err", err)
				}
			}
		}
	}()
}

func (p *Processor) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) notify(jobs ...Job) {
	if p.hooks.OnStatus == nil {
		return
	}
	for _, j := range jobs {
		p.hooks.OnStatus(j)
	}
}

func (p *Processor) dispatch() {
	type launch struct {
		ctx    context.Context
		cancel context.CancelFunc
		job    Job
		h      Handler
	}
	var started []launch

	p.mu.Lock()
	for !p.stopped && len(p.active) < p.cfg.MaxWorkers && p.queue.len() > 0 {
		j := p.queue.pop()

		now := p.now()
		j.Status = StatusProcessing
		j.Attempts++
		j.StartedAt = &now
		j.NextAttemptAt = nil

		attemptCtx, cancel := context.WithCancel(p.baseCtx)
		p.active[j.ID] = cancel
		p.wg.Add(1)
		started = append(started, launch{ctx: attemptCtx, cancel: cancel, job: j.clone(), h: p.handlers[j.Type]})
	}
	p.mu.Unlock()

	// Observers see processing before any outcome of the same attempt.
	for _, l := range started {
		p.notify(l.job)
		go p.execute(l.ctx, l.cancel, l.job, l.h)
	}
}

// execute races the handler against the attempt timeout. The handler runs in
// its own goroutine and only ever sees its copy of the job.
func (p *Processor) execute(ctx context.Context, cancel context.CancelFunc, job Job, h Handler) {
	defer p.wg.Done()
	defer cancel()

	results := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- attemptResult{err: fmt.Errorf("job panicked: %v", r)}
			}
		}()
		v, err := h(ctx, job)
		results <- attemptResult{value: v, err: err}
	}()

	timer := time.NewTimer(job.Timeout)
	defer timer.Stop()

	var res attemptResult
	select {
	case res = <-results:
	case <-timer.C:
		cancel()
		res = attemptResult{err: fmt.Errorf("%w after %s", ErrTimeout, job.Timeout)}
	case <-ctx.Done():
		res = attemptResult{err: ctx.Err()}
	}
	p.finish(job.ID, res)
}

func (p *Processor) finish(id string, res attemptResult) {
	var (
		events []Job
		failed *Job
	)

	p.mu.Lock()
	delete(p.active, id)
	j, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	now := p.now()

	switch {
	case j.Status == StatusCancelled:
		// Cancel won the race; the result is discarded.
	case p.stopped && errors.Is(res.err, context.Canceled):
		// Interrupted by shutdown: cancelled, never retried, OnFailed does not fire.
		j.Status = StatusCancelled
		j.FinishedAt = &now
		j.LastError = ErrStopped.Error()
		delete(p.backoffs, id)
		events = append(events, j.clone())
		p.logger.Info("job_interrupted", "job_id", id, "job_type", j.Type, "attempt", j.Attempts)
	case res.err == nil:
		j.Status = StatusCompleted
		j.FinishedAt = &now
		j.LastError = ""
		if res.value != nil {
			if raw, err := json.Marshal(res.value); err == nil {
				j.Result = raw
			}
		}
		delete(p.backoffs, id)
		events = append(events, j.clone())
		p.logger.Debug("job_completed", "job_id", id, "job_type", j.Type, "attempts", j.Attempts)
	default:
		j.LastError = res.err.Error()
		if delay, retry := p.retryDelay(j, res.err); retry {
			next := now.Add(delay)
			j.Status = StatusQueued
			j.NextAttemptAt = &next
			p.waiting[id] = time.AfterFunc(delay, func() { p.requeue(id) })
			p.retried++
			events = append(events, j.clone())
			p.logger.Warn("job_retry_scheduled", "job_id", id, "job_type", j.Type, "attempt", j.Attempts, "delay_ms", delay.Milliseconds(), "err", res.err)
		} else {
			j.Status = StatusFailed
			j.FinishedAt = &now
			delete(p.backoffs, id)
			c := j.clone()
			failed = &c
			events = append(events, c)
			p.logger.Error("job_failed", "job_id", id, "job_type", j.Type, "attempts", j.Attempts, "err", res.err)
		}
	}
	p.mu.Unlock()

	p.notify(events...)
	if failed != nil && p.hooks.OnFailed != nil {
		p.hooks.OnFailed(*failed)
	}
	p.signal()
}

// retryDelay decides whether j gets another attempt. Must hold p.mu.
func (p *Processor) retryDelay(j *Job, err error) (time.Duration, bool) {
	var perm *backoff.PermanentError
	if p.stopped || errors.As(err, &perm) || j.Attempts >= j.MaxAttempts {
		return 0, false
	}
	b, ok := p.backoffs[j.ID]
	if !ok {
		b = p.cfg.NewBackOff()
		p.backoffs[j.ID] = b
	}
	d := b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// requeue puts a retrying job at the front of its tier.
func (p *Processor) requeue(id string) {
	p.mu.Lock()
	delete(p.waiting, id)
	j, ok := p.jobs[id]
	if !ok || j.Status != StatusQueued || p.stopped {
		p.mu.Unlock()
		return
	}
	p.queue.pushFront(j)
	p.mu.Unlock()
	p.signal()
}

// GetJobStatus returns a copy of the job.
func (p *Processor) GetJobStatus(id string) (Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j.clone(), nil
}

// CancelJob removes a queued or retry-waiting job, or cancels the context of
// an active one. Cancellation of an active job may race with its completion.
func (p *Processor) CancelJob(id string) error {
	p.mu.Lock()
	j, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		p.mu.Unlock()
		return ErrJobFinished
	}

	p.queue.remove(id)
	if t, ok := p.waiting[id]; ok {
		t.Stop()
		delete(p.waiting, id)
	}
	if cancel, ok := p.active[id]; ok {
		cancel()
	}
	now := p.now()
	j.Status = StatusCancelled
	j.FinishedAt = &now
	j.NextAttemptAt = nil
	delete(p.backoffs, id)
	snapshot := j.clone()
	p.mu.Unlock()

	p.logger.Info("job_cancelled", "job_id", id, "job_type", snapshot.Type)
	p.notify(snapshot)
	return nil
}

// GetStats reports queue depth, active workers and terminal counts.
func (p *Processor) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{
		Queued:     p.queue.len(),
		Waiting:    len(p.waiting),
		Active:     len(p.active),
		MaxWorkers: p.cfg.MaxWorkers,
		Submitted:  p.submitted,
		Retried:    p.retried,
		Swept:      p.swept,
	}
	for _, j := range p.jobs {
		switch j.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Cleanup evicts terminal jobs finished longer than the retention period ago.
func (p *Processor) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.now().Add(-p.cfg.Retention)
	n := 0
	for id, j := range p.jobs {
		if j.Status.Terminal() && j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(p.jobs, id)
			n++
		}
	}
	p.swept += uint64(n)
	if n > 0 {
		p.logger.Debug("job_cleanup", "evicted", n)
	}
	return n
}

func (p *Processor) shutdown() {
	p.mu.Lock()
	p.stopped = true
	for id, t := range p.waiting {
		t.Stop()
		delete(p.waiting, id)
	}
	for _, cancel := range p.active {
		cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
}
