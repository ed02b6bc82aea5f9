package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fourmis/services/scheduler"
	"github.com/trezcool/fourmis/tests"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls []time.Time
	n     int
	err   error
}

func (c *fakeCompleter) CompleteEnded(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, now)
	return c.n, c.err
}

func (c *fakeCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestScheduler_RunCompletion(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)

	completer := &fakeCompleter{n: 3}
	sched := scheduler.New(completer, logger, conf)

	n, err := sched.RunCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Equal(t, 1, completer.Calls())
	assert.WithinDuration(t, time.Now(), completer.calls[0], time.Minute)

	completer.err = errors.New("db is down")
	_, err = sched.RunCompletion(context.Background())
	assert.EqualError(t, err, "db is down")
}

func TestScheduler_StartStop(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)

	conf.Missions.CompletionSchedule = "@every 1s" // the shortest cron interval
	completer := &fakeCompleter{}
	sched := scheduler.New(completer, logger, conf)
	require.NoError(t, sched.Start())

	assert.Eventually(t, func() bool { return completer.Calls() > 0 }, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sched.Stop(ctx)

	stopped := completer.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, completer.Calls(), "no run after Stop")
}

func TestScheduler_StartInvalidSchedule(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Missions.CompletionSchedule = "every now and then"
	sched := scheduler.New(&fakeCompleter{}, testutil.NewLogger(conf), conf)
	assert.Error(t, sched.Start())
}

func TestScheduler_metrics(t *testing.T) {
	conf := testutil.NewConfig()
	sched := scheduler.New(&fakeCompleter{n: 2}, testutil.NewLogger(conf), conf)

	before := promtest.ToFloat64(scheduler.RegistrationsCompleted)
	_, err := sched.RunCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before+2, promtest.ToFloat64(scheduler.RegistrationsCompleted))
}
