package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aouyang1/inkframe/activation"
	"github.com/aouyang1/inkframe/dispatch"
	"github.com/aouyang1/inkframe/util"
)

// eventChecker and passRunner are the parts of the engine and dispatcher the
// schedule manager drives.
type eventChecker interface {
	CheckEvents(now time.Time) ([]activation.Change, error)
}

type passRunner interface {
	RunPass(ctx context.Context, now time.Time) ([]dispatch.FrameResult, bool, error)
}

// ScheduleManager runs the calendar event passes on a fixed interval and the render
// dispatch passes once an hour at the dispatch minute.
type ScheduleManager struct {
	engine     eventChecker
	dispatcher passRunner
	clock      util.Clock

	pollInterval   time.Duration
	dispatchMinute int
}

func NewScheduleManager(engine eventChecker, dispatcher passRunner, clock util.Clock, pollInterval time.Duration, dispatchMinute int) *ScheduleManager {
	return &ScheduleManager{
		engine:         engine,
		dispatcher:     dispatcher,
		clock:          clock,
		pollInterval:   pollInterval,
		dispatchMinute: dispatchMinute,
	}
}

// passLogger tags every line of one pass with a shared id.
func passLogger(kind string) *slog.Logger {
	return slog.With("pass", uuid.NewString(), "kind", kind)
}

func (s *ScheduleManager) checkEvents() {
	logger := passLogger("events")
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event pass panicked", "panic", fmt.Sprint(r))
		}
	}()

	now := s.clock.Now()
	changes, err := s.engine.CheckEvents(now)
	for _, ch := range changes {
		logger.Info("applied event", "event", ch.Event, "action", ch.Action, "frames", ch.Frames)
	}
	if err != nil {
		logger.Error("error while checking events", "time", now, "error", err)
	}
}

func (s *ScheduleManager) dispatchPass(ctx context.Context) {
	logger := passLogger("dispatch")
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch pass panicked", "panic", fmt.Sprint(r))
		}
	}()

	now := s.clock.Now()
	results, ran, err := s.dispatcher.RunPass(util.WithLogger(ctx, logger), now)
	if err != nil {
		logger.Error("error while dispatching frames", "time", now, "error", err)
	}
	if !ran {
		logger.Debug("outside dispatch window", "time", now)
		return
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	logger.Info("dispatch pass finished", "frames", len(results), "failed", failed)
}

// RunEvents checks events immediately and then every poll interval until ctx is done.
func (s *ScheduleManager) RunEvents(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.checkEvents()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkEvents()
		}
	}
}

// RunDispatch sleeps until the next dispatch minute and runs a pass, repeating until
// ctx is done.
func (s *ScheduleManager) RunDispatch(ctx context.Context) {
	for {
		now := s.clock.Now()
		timer := time.NewTimer(dispatch.NextRun(now, s.dispatchMinute).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.dispatchPass(ctx)
		}
	}
}
