package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/loop"
)

func runLoop(t *testing.T) *loop.Loop {
	t.Helper()
	lp := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = lp.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return lp
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRegistry_ArmFiresOnce(t *testing.T) {
	lp := runLoop(t)
	r := NewRegistry("test", lp)

	var fired atomic.Int32
	h := r.Arm("a", 10*time.Millisecond, func() { fired.Add(1) })

	if h.Key != "a" {
		t.Errorf("Handle.Key = %q, want %q", h.Key, "a")
	}
	if !r.Live("a") {
		t.Error("Live(a) = false right after Arm")
	}

	waitFor(t, func() bool { return fired.Load() == 1 })
	time.Sleep(20 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("fired = %d, want 1", got)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after fire = %d, want 0", r.Len())
	}
}

func TestRegistry_RearmReplaces(t *testing.T) {
	lp := runLoop(t)
	r := NewRegistry("test", lp)

	var first, second atomic.Int32
	r.Arm("k", 30*time.Millisecond, func() { first.Add(1) })
	r.Arm("k", 30*time.Millisecond, func() { second.Add(1) })

	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}

	waitFor(t, func() bool { return second.Load() == 1 })
	time.Sleep(40 * time.Millisecond)

	if got := first.Load(); got != 0 {
		t.Errorf("replaced callback fired %d times, want 0", got)
	}
}

func TestRegistry_RearmLaterMovesDeadline(t *testing.T) {
	lp := runLoop(t)
	r := NewRegistry("test", lp)

	const delay = 60 * time.Millisecond
	var mu sync.Mutex
	var firedAt []time.Time
	record := func() {
		mu.Lock()
		defer mu.Unlock()
		firedAt = append(firedAt, time.Now())
	}
	fires := func() []time.Time {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Time(nil), firedAt...)
	}

	start := time.Now()
	r.Arm("k", delay, record)
	time.Sleep(20 * time.Millisecond)
	rearmed := time.Now()
	r.Arm("k", delay, record)

	// The first deadline has passed here, the second has not.
	time.Sleep(time.Until(start.Add(delay + 5*time.Millisecond)))
	if time.Since(rearmed) < delay {
		if got := len(fires()); got != 0 {
			t.Errorf("fired %d times before the re-armed deadline, want 0", got)
		}
	}

	waitFor(t, func() bool { return len(fires()) == 1 })
	time.Sleep(40 * time.Millisecond)

	got := fires()
	if len(got) != 1 {
		t.Fatalf("fired %d times, want 1", len(got))
	}
	if elapsed := got[0].Sub(rearmed); elapsed < delay {
		t.Errorf("fired %v after re-arm, want >= %v", elapsed, delay)
	}
}

func TestRegistry_CancelBeforeFire(t *testing.T) {
	lp := runLoop(t)
	r := NewRegistry("test", lp)

	var fired atomic.Int32
	r.Arm("k", 20*time.Millisecond, func() { fired.Add(1) })

	if !r.Cancel("k") {
		t.Fatal("Cancel() = false, want true")
	}
	if r.Cancel("k") {
		t.Error("second Cancel() = true, want false")
	}
	if r.Live("k") {
		t.Error("Live() after Cancel = true")
	}

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("fired = %d after Cancel, want 0", got)
	}
}

func TestRegistry_CancelAfterFireQueued(t *testing.T) {
	// The loop is not running, so the fire task sits in the queue.
	lp := loop.New()
	r := NewRegistry("test", lp)

	fired := false
	r.Arm("k", time.Millisecond, func() { fired = true })

	waitFor(t, func() bool { return lp.Len() == 1 })

	if !r.Cancel("k") {
		t.Fatal("Cancel() = false, want true for a queued fire")
	}
	lp.RunPending()

	if fired {
		t.Error("callback ran after Cancel returned")
	}
}

func TestRegistry_StaleHandle(t *testing.T) {
	lp := loop.New()
	r := NewRegistry("test", lp)

	old := r.Arm("k", time.Hour, func() {})
	cur := r.Arm("k", time.Hour, func() {})

	if r.Stop(old) {
		t.Error("Stop(stale handle) = true, want false")
	}
	if !r.Live("k") {
		t.Fatal("stale Stop removed the live timer")
	}
	if got := r.Current("k"); got == nil || got.FiresAt != cur.FiresAt {
		t.Errorf("Current() = %v, want %v", got, cur)
	}
	if !r.Stop(cur) {
		t.Error("Stop(current handle) = false, want true")
	}
	if r.Stop(nil) {
		t.Error("Stop(nil) = true, want false")
	}
}

func TestRegistry_ArmWaitsForFiringEntry(t *testing.T) {
	lp := loop.New()
	bus := event.NewBus()
	var races atomic.Int32
	bus.Subscribe(event.TypeTimerRace, func(event.Event) { races.Add(1) })
	r := NewRegistry("test", lp, WithBus(bus))

	r.Arm("k", time.Hour, func() {})
	r.mu.Lock()
	prev := r.timers["k"]
	r.mu.Unlock()
	// Hold prev between the start of its fire and its removal.
	prev.state.Store(stateFiring)

	armed := make(chan struct{})
	go func() {
		defer close(armed)
		r.Arm("k", time.Hour, func() {})
	}()

	time.Sleep(30 * time.Millisecond)
	select {
	case <-armed:
		t.Fatal("Arm() returned while the previous entry was still firing")
	default:
	}
	if got := races.Load(); got != 1 {
		t.Errorf("race events while waiting = %d, want 1", got)
	}

	r.remove(prev)
	close(prev.stop)
	select {
	case <-armed:
	case <-time.After(time.Second):
		t.Fatal("Arm() did not return after the previous entry left")
	}

	cur := r.Current("k")
	if cur == nil || cur.token == prev.token {
		t.Errorf("Current() = %+v, want the new entry", cur)
	}
	r.ClearAll()
}

func TestRegistry_CallbackCanRearmOwnKey(t *testing.T) {
	lp := runLoop(t)
	r := NewRegistry("test", lp)

	var count atomic.Int32
	var cb func()
	cb = func() {
		if count.Add(1) < 3 {
			r.Arm("tick", time.Millisecond, cb)
		}
	}
	r.Arm("tick", time.Millisecond, cb)

	waitFor(t, func() bool { return count.Load() == 3 })
	waitFor(t, func() bool { return r.Len() == 0 })
}

func TestRegistry_CancelOwnKeyFromCallback(t *testing.T) {
	lp := runLoop(t)
	r := NewRegistry("test", lp)

	result := make(chan bool, 1)
	r.Arm("self", time.Millisecond, func() {
		result <- r.Cancel("self")
	})

	select {
	case got := <-result:
		if got {
			t.Error("Cancel of the running timer = true, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("callback deadlocked or never ran")
	}
}

func TestRegistry_ClearAll(t *testing.T) {
	lp := runLoop(t)
	r := NewRegistry("test", lp)

	var fired atomic.Int32
	for _, k := range []string{"a", "b", "c"} {
		r.Arm(k, 20*time.Millisecond, func() { fired.Add(1) })
	}

	if n := r.ClearAll(); n != 3 {
		t.Errorf("ClearAll() = %d, want 3", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after ClearAll = %d, want 0", r.Len())
	}

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("fired = %d after ClearAll, want 0", got)
	}
}

func TestRegistry_SingleLiveTimerUnderConcurrentArm(t *testing.T) {
	lp := runLoop(t)
	r := NewRegistry("test", lp)

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Arm("shared", 30*time.Millisecond, func() { fired.Add(1) })
		}()
	}
	wg.Wait()

	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired = %d, want 1", got)
	}
}

func TestRegistry_PublishesEvents(t *testing.T) {
	lp := runLoop(t)
	bus := event.NewBus()

	var mu sync.Mutex
	seen := map[string]int{}
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		seen[e.EventType()]++
		mu.Unlock()
	})

	r := NewRegistry("test", lp, WithBus(bus))
	r.Arm("x", time.Hour, func() {})
	r.Cancel("x")
	r.Arm("y", time.Millisecond, func() {})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[event.TypeTimerFired] == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if seen[event.TypeTimerCancelled] != 1 {
		t.Errorf("timer.cancelled events = %d, want 1", seen[event.TypeTimerCancelled])
	}
}

func TestRegistry_StoppedLoopDropsFire(t *testing.T) {
	lp := loop.New()
	lp.Stop()
	r := NewRegistry("test", lp)

	r.Arm("k", time.Millisecond, func() { t.Error("callback ran on a stopped loop") })
	waitFor(t, func() bool { return r.Len() == 0 })
}
