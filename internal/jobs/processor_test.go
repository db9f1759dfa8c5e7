package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cmssync/internal/logging"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func run(t *testing.T, p *Processor) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func statusOf(p *Processor, id string) Status {
	j, err := p.GetJobStatus(id)
	if err != nil {
		return ""
	}
	return j.Status
}

func TestProcessor_PriorityOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{MaxWorkers: 1}, Hooks{}, logging.Discard())
	var (
		mu    sync.Mutex
		order []string
	)
	p.Register("work", func(ctx context.Context, j Job) (any, error) {
		var label string
		if err := j.Decode(&label); err != nil {
			return nil, err
		}
		mu.Lock()
		order = append(order, label)
		mu.Unlock()
		return nil, nil
	})

	for _, in := range []struct {
		label string
		prio  Priority
	}{
		{"a", PriorityLow},
		{"b", PriorityNormal},
		{"c", PriorityHigh},
		{"d", PriorityHigh},
		{"e", PriorityNormal},
	} {
		_, err := p.Enqueue("work", in.label, Options{Priority: in.prio})
		require.NoError(t, err)
	}

	stop := run(t, p)
	require.Eventually(t, func() bool { return p.GetStats().Completed == 5 }, waitFor, tick)
	stop()

	assert.Equal(t, []string{"c", "d", "b", "e", "a"}, order)
}

func TestProcessor_RetryThenFail(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu       sync.Mutex
		statuses []Status
		starts   []time.Time
		failed   atomic.Int32
	)
	p := New(Config{MaxWorkers: 2, RetryDelay: 20 * time.Millisecond}, Hooks{
		OnStatus: func(j Job) {
			mu.Lock()
			statuses = append(statuses, j.Status)
			mu.Unlock()
		},
		OnFailed: func(j Job) { failed.Add(1) },
	}, logging.Discard())
	p.Register("flaky", func(ctx context.Context, j Job) (any, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil, errors.New("always broken")
	})

	id, err := p.Enqueue("flaky", nil, Options{MaxAttempts: 3})
	require.NoError(t, err)

	stop := run(t, p)
	require.Eventually(t, func() bool { return statusOf(p, id) == StatusFailed }, waitFor, tick)
	stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{
		StatusQueued, StatusProcessing,
		StatusQueued, StatusProcessing,
		StatusQueued, StatusProcessing,
		StatusFailed,
	}, statuses)
	require.Len(t, starts, 3)
	first, second := starts[1].Sub(starts[0]), starts[2].Sub(starts[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 40*time.Millisecond)
	assert.Greater(t, second, first)
	assert.Equal(t, int32(1), failed.Load())

	j, err := p.GetJobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, 3, j.Attempts)
	assert.Equal(t, "always broken", j.LastError)
	assert.NotNil(t, j.FinishedAt)
}

func TestProcessor_SucceedsOnRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{RetryDelay: 5 * time.Millisecond}, Hooks{}, logging.Discard())
	var calls atomic.Int32
	p.Register("eventually", func(ctx context.Context, j Job) (any, error) {
		if calls.Add(1) < 2 {
			return nil, errors.New("not yet")
		}
		return map[string]int{"archived": 1}, nil
	})

	stop := run(t, p)
	id, err := p.Enqueue("eventually", nil, Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return statusOf(p, id) == StatusCompleted }, waitFor, tick)
	stop()

	j, _ := p.GetJobStatus(id)
	assert.Equal(t, 2, j.Attempts)
	assert.JSONEq(t, `{"archived":1}`, string(j.Result))
	assert.Equal(t, uint64(1), p.GetStats().Retried)
}

func TestProcessor_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{}, Hooks{}, logging.Discard())
	interrupted := make(chan struct{})
	p.Register("stuck", func(ctx context.Context, j Job) (any, error) {
		<-ctx.Done()
		close(interrupted)
		return nil, ctx.Err()
	})

	stop := run(t, p)
	id, err := p.Enqueue("stuck", nil, Options{Timeout: 30 * time.Millisecond, MaxAttempts: 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return statusOf(p, id) == StatusFailed }, waitFor, tick)

	select {
	case <-interrupted:
	case <-time.After(waitFor):
		t.Fatal("attempt context was not cancelled on timeout")
	}
	stop()

	j, _ := p.GetJobStatus(id)
	assert.Contains(t, j.LastError, ErrTimeout.Error())
}

func TestProcessor_Cancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{MaxWorkers: 1}, Hooks{}, logging.Discard())
	started := make(chan struct{}, 1)
	var ran atomic.Int32
	p.Register("block", func(ctx context.Context, j Job) (any, error) {
		ran.Add(1)
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	stop := run(t, p)
	defer stop()

	active, err := p.Enqueue("block", nil, Options{MaxAttempts: 1})
	require.NoError(t, err)
	<-started
	queued, err := p.Enqueue("block", nil, Options{MaxAttempts: 1})
	require.NoError(t, err)

	require.NoError(t, p.CancelJob(queued))
	assert.Equal(t, StatusCancelled, statusOf(p, queued))

	require.NoError(t, p.CancelJob(active))
	require.Eventually(t, func() bool { return p.GetStats().Active == 0 }, waitFor, tick)
	assert.Equal(t, StatusCancelled, statusOf(p, active))
	assert.Equal(t, int32(1), ran.Load(), "cancelled queued job must never run")

	assert.ErrorIs(t, p.CancelJob(active), ErrJobFinished)
	assert.ErrorIs(t, p.CancelJob("missing"), ErrJobNotFound)
}

func TestProcessor_CancelWaitingRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{RetryDelay: time.Hour}, Hooks{}, logging.Discard())
	p.Register("fail", func(ctx context.Context, j Job) (any, error) {
		return nil, errors.New("nope")
	})

	stop := run(t, p)
	id, err := p.Enqueue("fail", nil, Options{MaxAttempts: 2})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.GetStats().Waiting == 1 }, waitFor, tick)

	require.NoError(t, p.CancelJob(id))
	assert.Equal(t, 0, p.GetStats().Waiting)
	assert.Equal(t, StatusCancelled, statusOf(p, id))
	stop()
}

func TestProcessor_PermanentError(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{RetryDelay: time.Millisecond}, Hooks{}, logging.Discard())
	var calls atomic.Int32
	p.Register("bad-input", func(ctx context.Context, j Job) (any, error) {
		calls.Add(1)
		return nil, backoff.Permanent(errors.New("payload rejected"))
	})

	stop := run(t, p)
	id, err := p.Enqueue("bad-input", nil, Options{MaxAttempts: 5})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return statusOf(p, id) == StatusFailed }, waitFor, tick)
	stop()

	assert.Equal(t, int32(1), calls.Load())
}

func TestProcessor_PanicIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{}, Hooks{}, logging.Discard())
	p.Register("panics", func(ctx context.Context, j Job) (any, error) {
		panic("boom")
	})

	stop := run(t, p)
	id, err := p.Enqueue("panics", nil, Options{MaxAttempts: 1})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return statusOf(p, id) == StatusFailed }, waitFor, tick)
	stop()

	j, _ := p.GetJobStatus(id)
	assert.Contains(t, j.LastError, "boom")
}

func TestProcessor_EnqueueErrors(t *testing.T) {
	p := New(Config{QueueSize: 2}, Hooks{}, logging.Discard())
	p.Register("work", func(ctx context.Context, j Job) (any, error) { return nil, nil })

	_, err := p.Enqueue("nope", nil, Options{})
	assert.ErrorIs(t, err, ErrUnknownType)

	for i := 0; i < 2; i++ {
		_, err := p.Enqueue("work", i, Options{})
		require.NoError(t, err)
	}
	_, err = p.Enqueue("work", 3, Options{})
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = p.Enqueue("work", func() {}, Options{})
	assert.Error(t, err)

	st := p.GetStats()
	assert.Equal(t, 2, st.Queued)
	assert.Equal(t, uint64(2), st.Submitted)
}

func TestProcessor_Cleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{Retention: time.Minute}, Hooks{}, logging.Discard())
	p.Register("work", func(ctx context.Context, j Job) (any, error) { return nil, nil })

	stop := run(t, p)
	id, err := p.Enqueue("work", nil, Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return statusOf(p, id) == StatusCompleted }, waitFor, tick)
	stop()

	assert.Equal(t, 0, p.Cleanup(), "fresh jobs are retained")

	p.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, p.Cleanup())

	_, err = p.GetJobStatus(id)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Equal(t, uint64(1), p.GetStats().Swept)
}

func TestProcessor_Every(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(Config{}, Hooks{}, logging.Discard())
	var calls atomic.Int32
	p.Register("purge", func(ctx context.Context, j Job) (any, error) {
		calls.Add(1)
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	p.Every(ctx, 10*time.Millisecond, "purge", nil, Options{Priority: PriorityLow})

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, waitFor, tick)
	cancel()
	<-done

	_, err := p.Enqueue("purge", nil, Options{})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestProcessor_ShutdownInterruptsWithoutFailing(t *testing.T) {
	defer goleak.VerifyNone(t)

	var failures atomic.Int32
	p := New(Config{DefaultMaxAttempts: 3}, Hooks{OnFailed: func(Job) { failures.Add(1) }}, logging.Discard())
	p.Register("archive", func(ctx context.Context, j Job) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	id, err := p.Enqueue("archive", nil, Options{})
	require.NoError(t, err)

	stop := run(t, p)
	require.Eventually(t, func() bool { return statusOf(p, id) == StatusProcessing }, waitFor, tick)
	stop()

	j, err := p.GetJobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, j.Status)
	assert.Equal(t, ErrStopped.Error(), j.LastError)
	assert.Equal(t, 1, j.Attempts)
	assert.Zero(t, failures.Load())
	assert.Zero(t, p.GetStats().Failed)
}

func TestLinearBackOff(t *testing.T) {
	b := NewLinearBackOff(10 * time.Millisecond)
	b.Max = 25 * time.Millisecond

	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 25*time.Millisecond, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority("HIGH"))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityNormal, ParsePriority(""))
	assert.Equal(t, "normal", Priority(42).String())
}
