package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aouyang1/inkframe/activation"
	"github.com/aouyang1/inkframe/dispatch"
	"github.com/aouyang1/inkframe/testutil"
)

type fakeChecker struct {
	calls []time.Time
	panic bool
}

func (f *fakeChecker) CheckEvents(now time.Time) ([]activation.Change, error) {
	f.calls = append(f.calls, now)
	if f.panic {
		panic("boom")
	}
	return []activation.Change{{Event: "Summer", Action: activation.Activate, Frames: []string{"ABC"}}}, errors.New("one frame failed")
}

type fakePass struct {
	calls []time.Time
	panic bool
}

func (f *fakePass) RunPass(ctx context.Context, now time.Time) ([]dispatch.FrameResult, bool, error) {
	f.calls = append(f.calls, now)
	if f.panic {
		panic("boom")
	}
	return []dispatch.FrameResult{{Code: "ABC"}, {Code: "DEF", Skipped: true, Reason: "no category"}}, true, nil
}

func TestScheduleManager_Passes(t *testing.T) {
	clock := testutil.At(7, 1, 13, 30)
	checker := &fakeChecker{}
	pass := &fakePass{}
	s := NewScheduleManager(checker, pass, clock, time.Minute, 30)

	s.checkEvents()
	s.dispatchPass(context.Background())

	if len(checker.calls) != 1 || !checker.calls[0].Equal(clock.Now()) {
		t.Errorf("CheckEvents calls = %v, want one at %s", checker.calls, clock.Now())
	}
	if len(pass.calls) != 1 || !pass.calls[0].Equal(clock.Now()) {
		t.Errorf("RunPass calls = %v, want one at %s", pass.calls, clock.Now())
	}
}

func TestScheduleManager_RecoversFromPanics(t *testing.T) {
	checker := &fakeChecker{panic: true}
	pass := &fakePass{panic: true}
	s := NewScheduleManager(checker, pass, testutil.At(7, 1, 13, 30), time.Minute, 30)

	s.checkEvents()
	s.dispatchPass(context.Background())

	if len(checker.calls) != 1 || len(pass.calls) != 1 {
		t.Errorf("calls = %d, %d, want 1, 1", len(checker.calls), len(pass.calls))
	}
}

func TestScheduleManager_RunEventsStopsOnCancel(t *testing.T) {
	checker := &fakeChecker{}
	s := NewScheduleManager(checker, &fakePass{}, testutil.At(7, 1, 13, 30), time.Hour, 30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunEvents(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunEvents did not return after cancel")
	}
	// the immediate pass always runs
	if len(checker.calls) != 1 {
		t.Errorf("CheckEvents calls = %d, want 1", len(checker.calls))
	}
}
