package coalesce

import (
	"testing"

	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/event"
	"github.com/aridash/ari/internal/loop"
)

// recorder captures render batches and lets the test complete them by hand.
type recorder struct {
	batches [][]PendingUpdate
	dones   []func(error)
}

func (r *recorder) render(batch []PendingUpdate, done func(error)) {
	r.batches = append(r.batches, batch)
	r.dones = append(r.dones, done)
}

func (r *recorder) completeLast(lp *loop.Loop) {
	r.dones[len(r.dones)-1](nil)
	lp.RunPending()
}

func TestCoalescer_IdleSubmitRendersImmediately(t *testing.T) {
	lp := loop.New()
	rec := &recorder{}
	c := New("tasks", lp, rec.render)

	c.Submit("1", Patch{Status: 1})

	if c.State() != Rendering {
		t.Fatalf("State() = %v, want rendering", c.State())
	}
	if len(rec.batches) != 1 || len(rec.batches[0]) != 1 {
		t.Fatalf("batches = %v, want one batch of one row", rec.batches)
	}
	if got := rec.batches[0][0]; got.LatestStatus != 1 || got.MergeCount != 1 {
		t.Errorf("batch[0] = %+v, want status 1 merge 1", got)
	}
	if c.PendingLen() != 0 {
		t.Errorf("PendingLen() = %d, want 0 after render start", c.PendingLen())
	}

	rec.completeLast(lp)
	if c.State() != Idle {
		t.Errorf("State() after completion = %v, want idle", c.State())
	}
	if c.Renders() != 1 {
		t.Errorf("Renders() = %d, want 1", c.Renders())
	}
}

func TestCoalescer_MergesWhileRendering(t *testing.T) {
	lp := loop.New()
	rec := &recorder{}
	c := New("tasks", lp, rec.render)

	c.Submit("row-1", Patch{Status: 1})
	c.Submit("row-1", Patch{Status: 2})
	c.Submit("row-1", Patch{Status: 3, Result: "ok"})

	p, ok := c.Pending("row-1")
	if !ok {
		t.Fatal("Pending(row-1) missing while rendering")
	}
	if p.LatestStatus != 3 || p.LatestResult != "ok" || p.MergeCount != 2 {
		t.Errorf("pending = %+v, want status 3 result ok merge 2", p)
	}
	if len(rec.batches) != 1 {
		t.Fatalf("renders started = %d, want 1 while rendering", len(rec.batches))
	}

	rec.completeLast(lp)

	if len(rec.batches) != 2 {
		t.Fatalf("renders = %d, want exactly one follow-up", len(rec.batches))
	}
	follow := rec.batches[1]
	if len(follow) != 1 || follow[0].LatestStatus != 3 || follow[0].LatestResult != "ok" {
		t.Errorf("follow-up batch = %+v, want row-1 status 3 result ok", follow)
	}

	rec.completeLast(lp)
	if len(rec.batches) != 2 {
		t.Errorf("renders = %d after quiet completion, want 2", len(rec.batches))
	}
	if c.State() != Idle {
		t.Errorf("State() = %v, want idle", c.State())
	}
}

func TestCoalescer_ResultSurvivesLaterStatusOnlyPatch(t *testing.T) {
	lp := loop.New()
	rec := &recorder{}
	c := New("tasks", lp, rec.render)

	c.Submit("a", Patch{Status: 0})
	c.Submit("a", Patch{Status: 3, Result: "done"})
	c.Submit("a", Patch{Status: 2})

	p, _ := c.Pending("a")
	if p.LatestResult != "done" || p.LatestStatus != 2 {
		t.Errorf("pending = %+v, want result done status 2", p)
	}
}

func TestCoalescer_FollowUpKeepsRowOrder(t *testing.T) {
	lp := loop.New()
	rec := &recorder{}
	c := New("tasks", lp, rec.render)

	c.Submit("first", Patch{Status: 1})
	c.Submit("b", Patch{Status: 1})
	c.Submit("a", Patch{Status: 2})
	c.Submit("b", Patch{Status: 2})
	rec.completeLast(lp)

	follow := rec.batches[1]
	if len(follow) != 2 || follow[0].RowKey != "b" || follow[1].RowKey != "a" {
		t.Errorf("follow-up rows = %+v, want [b a]", follow)
	}
}

func TestCoalescer_RenderWhileRenderingIsReentrant(t *testing.T) {
	lp := loop.New()
	bus := event.NewBus()
	races := 0
	bus.Subscribe(event.TypeTimerRace, func(event.Event) { races++ })

	rec := &recorder{}
	c := New("tasks", lp, rec.render, WithBus(bus))

	c.Submit("x", Patch{Status: 1})
	err := c.Render()
	if !errors.Is(err, errors.ErrRenderReentrant) {
		t.Fatalf("Render() = %v, want ErrRenderReentrant", err)
	}
	if races != 1 {
		t.Errorf("timer.race events = %d, want 1", races)
	}
	if len(rec.batches) != 1 {
		t.Errorf("renders = %d, want 1", len(rec.batches))
	}

	rec.completeLast(lp)
	if err := c.Render(); err != nil {
		t.Errorf("Render() while idle = %v, want nil", err)
	}
}

func TestCoalescer_DoneCalledTwiceCompletesOnce(t *testing.T) {
	lp := loop.New()
	bus := event.NewBus()
	completions := 0
	bus.Subscribe(event.TypeRenderCompleted, func(event.Event) { completions++ })

	var done func(error)
	c := New("tasks", lp, func(_ []PendingUpdate, d func(error)) { done = d }, WithBus(bus))
	c.Submit("x", Patch{Status: 1})

	done(nil)
	done(nil)
	lp.RunPending()

	if completions != 1 {
		t.Errorf("completions = %d, want 1", completions)
	}
}

func TestCoalescer_AsyncRenderNoLostUpdates(t *testing.T) {
	lp := loop.New()
	var applied = map[string]PendingUpdate{}
	c := New("tasks", lp, func(batch []PendingUpdate, done func(error)) {
		for _, u := range batch {
			applied[u.RowKey] = u
		}
		go done(nil)
	})

	for i := 0; i <= 3; i++ {
		status := i
		lp.Post(func() { c.Submit("t1", Patch{Status: status}) })
	}
	lp.Post(func() { c.Submit("t2", Patch{Status: 3, Result: "r"}) })

	for c.State() == Rendering || lp.Len() > 0 {
		lp.RunPending()
	}

	if got := applied["t1"].LatestStatus; got != 3 {
		t.Errorf("t1 status = %d, want 3", got)
	}
	if got := applied["t2"].LatestResult; got != "r" {
		t.Errorf("t2 result = %q, want r", got)
	}
}

func TestState_String(t *testing.T) {
	if Idle.String() != "idle" || Rendering.String() != "rendering" {
		t.Errorf("String() = %q/%q", Idle.String(), Rendering.String())
	}
}

func TestCoalescer_InvalidateWhileRenderingSchedulesFollowUp(t *testing.T) {
	lp := loop.New()
	rec := &recorder{}
	c := New("tasks", lp, rec.render)

	c.Invalidate()
	if len(rec.batches) != 1 || len(rec.batches[0]) != 0 {
		t.Fatalf("batches = %v, want one empty render", rec.batches)
	}

	c.Invalidate()
	c.Invalidate()
	rec.completeLast(lp)
	if len(rec.batches) != 2 {
		t.Fatalf("renders = %d, want 2", len(rec.batches))
	}

	rec.completeLast(lp)
	if len(rec.batches) != 2 {
		t.Errorf("renders = %d after clean completion, want 2", len(rec.batches))
	}
}
