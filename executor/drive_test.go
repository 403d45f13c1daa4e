package executor

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-netexec/api"
	"github.com/momentics/hioload-netexec/control"
	"github.com/momentics/hioload-netexec/fake"
	"github.com/momentics/hioload-netexec/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDrive_ReadyOnFirstPoll(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k)
	h := Spawn(s, Ready(42))

	v, err := Drive[int](s, h)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Empty(t, k.Blocks())
	assert.Equal(t, uint64(1), s.Stats().Passes)
	assert.False(t, k.Polling())
}

func TestDrive_TimeoutWhileIdleNeverBlocks(t *testing.T) {
	k := fake.NewKernel()
	k.SetTick(time.Millisecond)
	s := newScheduler(t, k)

	_, err := Drive(s, Pending[int](), WithTimeout(50*time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.ErrCodeTimeout, apiErr.Code)
	assert.Equal(t, 50*time.Millisecond, apiErr.Context["elapsed"])

	assert.Zero(t, k.Count(fake.OpBlock), "no oracle delay, no park")
	assert.Equal(t, 51*time.Millisecond, k.Elapsed())
	assert.False(t, k.Polling())
	assert.Equal(t, uint64(1), s.Stats().Timeouts)
}

func TestDrive_ParksOncePerIdlePeriod(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k, WithOracle(fake.FixedDelay(500*time.Millisecond)))

	_, err := Drive(s, Pending[int](), WithTimeout(2*time.Second))
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []uint64{500, 500, 500, 500}, k.Blocks())
	assert.Equal(t, 2*time.Second, k.Elapsed())
	assert.Equal(t, uint64(4), s.Stats().Parks)
}

func TestDrive_KernelOpSequence(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k, WithOracle(fake.FixedDelay(500*time.Millisecond)))

	v, err := Drive(s, afterPolls(2, "done"))
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	want := []fake.Op{
		{Kind: fake.OpCurrentThread},
		{Kind: fake.OpSetPolling, Arg: 1},
		{Kind: fake.OpBlock, Arg: 500},
		{Kind: fake.OpSetPolling, Arg: 0},
		{Kind: fake.OpYield},
		{Kind: fake.OpSetPolling, Arg: 1},
		{Kind: fake.OpSetPolling, Arg: 0},
	}
	if diff := cmp.Diff(want, k.Ops()); diff != "" {
		t.Errorf("kernel ops mismatch (-want +got):\n%s", diff)
	}
}

func TestDrive_WakeBeforeParkDecisionSkipsPark(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k, WithOracle(fake.FixedDelay(500*time.Millisecond)))

	polls := 0
	f := PollFunc[int](func(w Waker) (int, bool) {
		polls++
		if polls > 1 {
			return polls, true
		}
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Wake()
			}()
		}
		wg.Wait()
		return 0, false
	})

	v, err := Drive[int](s, f)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Empty(t, k.Blocks(), "pending wake observed by reset, no park")
	assert.Equal(t, 1, k.Count(fake.OpWake), "two notifies, one kernel wake")
	assert.Equal(t, uint64(2), s.Stats().Notifies)
	assert.Equal(t, uint64(1), s.Stats().Wakes)
}

func TestDrive_InterruptEndsPark(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k, WithOracle(fake.FixedDelay(500*time.Millisecond)))

	g := &gate[string]{}
	k.At(200*time.Millisecond, func() { g.open("irq") })

	v, err := Drive[string](s, g)
	require.NoError(t, err)
	assert.Equal(t, "irq", v)
	assert.Equal(t, []uint64{500}, k.Blocks())
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, k.Slept())
	assert.Equal(t, 1, k.Count(fake.OpWake))
}

func TestDrive_BackgroundTaskWakeEndsPark(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k, WithOracle(fake.FixedDelay(500*time.Millisecond)))

	bg := &gate[int]{}
	h := Spawn[int](s, bg)
	k.At(300*time.Millisecond, func() { bg.open(5) })

	v, err := Drive[int](s, h)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, k.Slept())
	assert.Equal(t, 1, k.Count(fake.OpWake), "push notify and joiner wake coalesce")
}

func TestDrive_PollingModeOnlyOffAcrossPark(t *testing.T) {
	k := fake.NewKernel()
	oracle := &fake.Oracle{Kernel: k, Next: fake.FixedDelay(500 * time.Millisecond)}
	s := newScheduler(t, k, WithOracle(oracle))

	offPolls := 0
	SpawnFunc(s, func(w Waker) (struct{}, bool) {
		if !k.Polling() {
			offPolls++
		}
		return struct{}{}, false
	})
	polls := 0
	f := PollFunc[int](func(Waker) (int, bool) {
		if !k.Polling() {
			offPolls++
		}
		polls++
		return polls, polls == 4
	})

	v, err := Drive[int](s, f)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	assert.Equal(t, []uint64{500, 500, 500}, k.Blocks())
	assert.Zero(t, offPolls)
	assert.Zero(t, oracle.Violations())
	assert.Len(t, oracle.Calls(), 3)
	assert.Zero(t, k.ParkedWhilePolling())
	assert.False(t, k.Polling())
}

func TestDrive_TimeoutIffCompletionAfterDeadline(t *testing.T) {
	// tick 10ms: poll i happens at elapsed 10*(i-1)
	for _, tc := range []struct {
		name    string
		polls   int
		timeout time.Duration
		wantErr bool
	}{
		{"zero timeout ready immediately", 1, 0, false},
		{"completes at deadline", 3, 20 * time.Millisecond, true},
		{"completes before deadline", 3, 21 * time.Millisecond, false},
		{"well within", 5, 100 * time.Millisecond, false},
		{"late", 11, 100 * time.Millisecond, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := fake.NewKernel()
			k.SetTick(10 * time.Millisecond)
			s := newScheduler(t, k)

			v, err := Drive(s, afterPolls(tc.polls, true), WithTimeout(tc.timeout))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrTimeout)
				assert.False(t, v)
				return
			}
			require.NoError(t, err)
			assert.True(t, v)
		})
	}
}

func TestDrive_NoTimeoutNeverTimesOut(t *testing.T) {
	k := fake.NewKernel()
	k.SetTick(time.Hour)
	s := newScheduler(t, k)

	v, err := Drive(s, afterPolls(1000, "late"))
	require.NoError(t, err)
	assert.Equal(t, "late", v)
	assert.Zero(t, s.Stats().Timeouts)
}

func TestDrive_ParkThresholdIsExclusiveWholeMillis(t *testing.T) {
	for _, tc := range []struct {
		name      string
		threshold time.Duration
		delay     time.Duration
		park      bool
	}{
		{"at threshold", DefaultParkThreshold, 100 * time.Millisecond, false},
		{"sub-millisecond above threshold", DefaultParkThreshold, 100*time.Millisecond + 900*time.Microsecond, false},
		{"one ms above threshold", DefaultParkThreshold, 101 * time.Millisecond, true},
		{"zero threshold", 0, time.Millisecond, true},
		{"zero threshold sub-millisecond", 0, 500 * time.Microsecond, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := fake.NewKernel()
			k.SetTick(time.Millisecond)
			s := newScheduler(t, k, WithOracle(fake.FixedDelay(tc.delay)), WithParkThreshold(tc.threshold))

			_, err := Drive(s, Pending[int](), WithTimeout(10*time.Millisecond))
			require.ErrorIs(t, err, ErrTimeout)
			assert.Equal(t, tc.park, k.Count(fake.OpBlock) > 0)
		})
	}
}

func TestDrive_ParkClampedToDeadline(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k, WithOracle(fake.FixedDelay(500*time.Millisecond)))

	_, err := Drive(s, Pending[int](), WithTimeout(120*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []uint64{120}, k.Blocks())
	assert.Equal(t, 120*time.Millisecond, k.Elapsed())
}

func TestDrive_RejectsNestedConsumer(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k)

	h := SpawnFunc(s, func(Waker) (error, bool) {
		_, err := Drive(s, Ready(1))
		return err, true
	})
	inner, err := Drive[error](s, h)
	require.NoError(t, err)
	require.Error(t, inner)
	assert.ErrorIs(t, inner, ErrBusy)

	var apiErr *api.Error
	require.True(t, errors.As(inner, &apiErr))
	assert.Equal(t, api.ErrCodeBusy, apiErr.Code)
}

func TestDrive_InvalidArguments(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = New(fake.NewKernel(), WithParkThreshold(-time.Millisecond))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	s := newScheduler(t, fake.NewKernel())
	_, err = Drive[int](s, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestDrive_PanicLeavesSchedulerUsable(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k)

	require.PanicsWithValue(t, "boom", func() {
		_, _ = Drive(s, PollFunc[int](func(Waker) (int, bool) { panic("boom") }))
	})
	assert.False(t, k.Polling())

	v, err := Drive(s, Ready(7))
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestDrive_JoinOnPanickedTaskPanics(t *testing.T) {
	s := newScheduler(t, fake.NewKernel())
	h := SpawnFunc(s, func(Waker) (int, bool) { panic(errors.New("bad state")) })

	defer func() {
		pe, ok := recover().(*PanicError)
		require.True(t, ok)
		assert.EqualError(t, pe.Unwrap(), "bad state")
		assert.NotEmpty(t, pe.Stack)
	}()
	_, _ = Drive[int](s, h)
	t.Fatal("drive returned")
}

func TestDrive_PublishesMetricsAndProbes(t *testing.T) {
	k := fake.NewKernel()
	mr := control.NewMetricsRegistry()
	s := newScheduler(t, k, WithMetrics(mr), WithOracle(fake.FixedDelay(time.Second)))

	_, err := Drive(s, afterPolls(2, 0))
	require.NoError(t, err)

	v, ok := mr.Get("executor.drives")
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)
	v, _ = mr.Get("executor.parks")
	assert.Equal(t, uint64(1), v)

	dp := control.NewDebugProbes()
	s.RegisterProbes(dp)
	state := dp.DumpState()
	assert.Equal(t, 0, state["executor.ready_len"])
	assert.Equal(t, "100ms", state["executor.park_threshold"])
	assert.Equal(t, false, state["executor.driving"])
	assert.Equal(t, s.Stats(), state["executor.stats"])
}

func TestDrive_TraceSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	k := fake.NewKernel()
	s := newScheduler(t, k, WithTracer(tp.Tracer("test")), WithOracle(fake.FixedDelay(time.Second)))

	_, err := Drive(s, Pending[int](), WithTimeout(1500*time.Millisecond), WithContext(context.Background()))
	require.ErrorIs(t, err, ErrTimeout)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "executor.drive", span.Name())
	assert.Contains(t, span.Attributes(), attribute.String("executor.outcome", "timeout"))
	assert.Contains(t, span.Attributes(), attribute.Int("executor.parks", 2))
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestDrive_LogsParkAndTeardown(t *testing.T) {
	var buf bytes.Buffer
	k := fake.NewKernel()
	s := newScheduler(t, k,
		WithLogger(logging.New(&buf, logiface.LevelDebug)),
		WithOracle(fake.FixedDelay(200*time.Millisecond)))

	_, err := Drive(s, afterPolls(2, 0))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "executor: parking")
	assert.Contains(t, buf.String(), "executor: notifier released")
}

func TestScheduler_BindConfigFollowsReload(t *testing.T) {
	store := control.NewConfigStore(control.DefaultConfig())
	s := newScheduler(t, fake.NewKernel(), WithParkThreshold(time.Second))

	s.BindConfig(store)
	assert.Equal(t, DefaultParkThreshold, s.ParkThreshold())

	require.NoError(t, store.Update(func(c *control.Config) {
		c.Executor.ParkThreshold = 250 * time.Millisecond
	}))
	assert.Equal(t, 250*time.Millisecond, s.ParkThreshold())

	require.NoError(t, store.Update(func(c *control.Config) {
		c.Executor.ParkThreshold = 0
	}))
	assert.Zero(t, s.ParkThreshold(), "a zero threshold from config is applied")

	require.Error(t, store.Update(func(c *control.Config) {
		c.Executor.ParkThreshold = -time.Second
	}))
	assert.Zero(t, s.ParkThreshold())

	s.SetParkThreshold(-time.Second)
	assert.Zero(t, s.ParkThreshold())
}

func TestDrive_SelfPollingTaskDoesNotPreventPark(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k, WithOracle(fake.FixedDelay(500*time.Millisecond)))

	runs := 0
	SpawnFunc(s, func(w Waker) (struct{}, bool) {
		runs++
		w.Wake()
		return struct{}{}, false
	})

	_, err := Drive(s, afterPolls(3, 0))
	require.NoError(t, err)
	assert.Equal(t, []uint64{500, 500}, k.Blocks())
	assert.Equal(t, 3, runs, "serviced once per pass")
	assert.Zero(t, k.Count(fake.OpWake))
}

func TestDrive_WakeFromOtherGoroutineWhileRunningPreventsPark(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k, WithOracle(fake.FixedDelay(500*time.Millisecond)))

	runs := 0
	h := SpawnFunc(s, func(w Waker) (int, bool) {
		runs++
		if runs == 1 {
			woke := make(chan struct{})
			go func() {
				w.Wake()
				close(woke)
			}()
			<-woke
			return 0, false
		}
		return 7, true
	})

	v, err := Drive[int](s, h)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, runs)
	assert.Empty(t, k.Blocks(), "runnable task must not sit behind a park")
	assert.Empty(t, k.Slept())
	assert.GreaterOrEqual(t, k.Count(fake.OpWake), 1)
}

func TestTask_WakeWhileRunningOnConsumerIsDeferred(t *testing.T) {
	k := fake.NewKernel()
	s := newScheduler(t, k)

	var inner Waker
	SpawnFunc(s, func(w Waker) (struct{}, bool) {
		inner = w
		w.Wake()
		return struct{}{}, false
	})

	n, err := s.RunPass()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, uint64(1), s.Stats().Deferred)

	// a second wake of the already queued task is a no-op
	inner.Wake()
	assert.Equal(t, 1, s.Len())
}
