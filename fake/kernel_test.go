package fake

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestKernel_TickAdvancesOnNow(t *testing.T) {
	k := NewKernel()
	k.SetTick(3 * time.Millisecond)
	assert.Equal(t, Epoch.Add(3*time.Millisecond), k.Now())
	assert.Equal(t, Epoch.Add(6*time.Millisecond), k.Now())
	assert.Equal(t, 6*time.Millisecond, k.Elapsed())
}

func TestKernel_YieldWithoutBlockReturnsImmediately(t *testing.T) {
	k := NewKernel()
	k.Yield()
	assert.Zero(t, k.Elapsed())
	assert.Empty(t, k.Slept())
}

func TestKernel_ParkRunsToTimeout(t *testing.T) {
	k := NewKernel()
	k.BlockWithTimeout(40)
	k.Yield()
	assert.Equal(t, 40*time.Millisecond, k.Elapsed())
	assert.Equal(t, []time.Duration{40 * time.Millisecond}, k.Slept())
	assert.Equal(t, []uint64{40}, k.Blocks())
}

func TestKernel_WakeBeforeBlockIsLost(t *testing.T) {
	k := NewKernel()
	k.WakeThread(1)
	k.BlockWithTimeout(10)
	k.Yield()
	assert.Equal(t, 10*time.Millisecond, k.Elapsed(), "wake found the thread running")
}

func TestKernel_EventWakesPark(t *testing.T) {
	k := NewKernel()
	var fired []time.Duration
	k.At(5*time.Millisecond, func() { fired = append(fired, k.Elapsed()) })
	k.At(15*time.Millisecond, func() {
		fired = append(fired, k.Elapsed())
		k.WakeThread(1)
	})
	k.At(time.Second, func() { t.Error("event past the park deadline fired") })

	k.BlockWithTimeout(100)
	k.Yield()
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 15 * time.Millisecond}, fired)
	assert.Equal(t, []time.Duration{15 * time.Millisecond}, k.Slept())
}

func TestKernel_RecordsOpsAndViolations(t *testing.T) {
	k := NewKernel()
	k.CurrentThread()
	k.SetPollingMode(true)
	k.BlockWithTimeout(1)
	k.Yield()
	k.WakeThread(9)
	k.SetPollingMode(false)

	want := []Op{
		{Kind: OpCurrentThread},
		{Kind: OpSetPolling, Arg: 1},
		{Kind: OpBlock, Arg: 1},
		{Kind: OpYield},
		{Kind: OpWake, Arg: 9},
		{Kind: OpSetPolling},
	}
	if diff := cmp.Diff(want, k.Ops()); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, k.ParkedWhilePolling())
	assert.Equal(t, 1, k.ForeignWakes())
	assert.False(t, k.Polling())
	assert.Equal(t, "set_polling", OpSetPolling.String())
}

func TestOracle_CountsQueriesOutsidePolling(t *testing.T) {
	k := NewKernel()
	o := &Oracle{Kernel: k, Next: FixedDelay(time.Second)}

	d, ok := o.NetworkDelay(k.Now())
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
	assert.Equal(t, 1, o.Violations())

	k.SetPollingMode(true)
	_, _ = o.NetworkDelay(k.Now())
	assert.Equal(t, 1, o.Violations())
	assert.Len(t, o.Calls(), 2)

	_, ok = (&Oracle{}).NetworkDelay(Epoch)
	assert.False(t, ok)
}
