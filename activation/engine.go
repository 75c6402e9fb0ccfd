// Package activation switches frames between their default category and wake times
// and the overrides carried by calendar and external events.
package activation

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aouyang1/inkframe/config"
	"github.com/aouyang1/inkframe/store"
)

var (
	ErrUnknownLink   = errors.New("unknown external event link")
	ErrInvalidAction = errors.New("invalid action")
)

// Store is the slice of store.Database the engine needs.
type Store interface {
	ListEvents() ([]store.Event, error)
	EventFrames(eventID int64) ([]store.Frame, error)
	GetExternalEventByLink(linkName string) (*store.ExternalEvent, error)
	ExternalEventFrames(externalEventID int64) ([]store.Frame, error)
	ApplyFrameStates(states []store.FrameState) error
}

type Action string

const (
	Activate   Action = "activate"
	Deactivate Action = "deactivate"
)

// Outcome is the result of an external toggle.
type Outcome string

const (
	Activated       Outcome = "activated"
	Deactivated     Outcome = "deactivated"
	AlreadyActive   Outcome = "already_active"
	AlreadyInactive Outcome = "already_inactive"
)

// Change records one event applied by a calendar pass.
type Change struct {
	Event  string
	Action Action
	Frames []string
}

type Engine struct {
	store     Store
	wakeFiles *WakeFiles
	policy    string
}

// NewEngine builds an engine. policy is one of the config.SingleDay* values and
// decides what happens when an event starts and ends on the same day.
func NewEngine(st Store, wakeFiles *WakeFiles, policy string) *Engine {
	if policy == "" {
		policy = config.SingleDayStart
	}
	return &Engine{store: st, wakeFiles: wakeFiles, policy: policy}
}

// actionsFor lists what an event does on the day of now, in order.
func (e *Engine) actionsFor(ev store.Event, now time.Time) []Action {
	starts := ev.Start.Matches(now)
	ends := ev.End != nil && ev.End.Matches(now)

	switch {
	case starts && ends:
		switch e.policy {
		case config.SingleDayEnd:
			return []Action{Deactivate}
		case config.SingleDayBoth:
			return []Action{Activate, Deactivate}
		default:
			return []Action{Activate}
		}
	case starts:
		return []Action{Activate}
	case ends:
		return []Action{Deactivate}
	}
	return nil
}

// CheckEvents runs one calendar pass for the day of now. Events whose frames are
// already in the target state are left alone. A failing event does not stop the
// others; all failures are returned together.
func (e *Engine) CheckEvents(now time.Time) ([]Change, error) {
	events, err := e.store.ListEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var changes []Change
	var errs []error
	for _, ev := range events {
		actions := e.actionsFor(ev, now)
		if len(actions) == 0 {
			continue
		}

		frames, err := e.store.EventFrames(ev.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %q: %w", ev.Name, err))
			continue
		}

		for _, action := range actions {
			states := targetStates(frames, action, ev.CategoryID, ev.WakeTimes)
			if len(actions) == 1 && alreadyApplied(frames, states) {
				continue
			}
			if err := e.apply(states); err != nil {
				errs = append(errs, fmt.Errorf("event %q: %w", ev.Name, err))
				break
			}
			frames = withStates(frames, states)

			codes := frameCodes(frames)
			slog.Info("applied event", "event", ev.Name, "action", action, "frames", codes)
			changes = append(changes, Change{Event: ev.Name, Action: action, Frames: codes})
		}
	}
	return changes, errors.Join(errs...)
}

// Toggle switches an external event on or off. It is a no-op when every linked frame
// already has the target active category.
// An unknown link is reported before an invalid action.
func (e *Engine) Toggle(linkName, action string) (Outcome, error) {
	ev, err := e.store.GetExternalEventByLink(linkName)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: %q", ErrUnknownLink, linkName)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get external event: %w", err)
	}

	var act Action
	switch action {
	case "on":
		act = Activate
	case "off":
		act = Deactivate
	default:
		return "", fmt.Errorf("%w %q: want on or off", ErrInvalidAction, action)
	}

	frames, err := e.store.ExternalEventFrames(ev.ID)
	if err != nil {
		return "", fmt.Errorf("failed to get frames for %q: %w", linkName, err)
	}

	target := ev.CategoryID
	if act == Deactivate {
		target = nil
	}
	if allHaveCategory(frames, target) {
		if act == Activate {
			return AlreadyActive, nil
		}
		return AlreadyInactive, nil
	}

	if err := e.apply(targetStates(frames, act, ev.CategoryID, ev.WakeTimes)); err != nil {
		return "", fmt.Errorf("external event %q: %w", linkName, err)
	}
	slog.Info("toggled external event", "link", linkName, "action", act, "frames", frameCodes(frames))

	if act == Activate {
		return Activated, nil
	}
	return Deactivated, nil
}

// apply commits states in one transaction, then rewrites each frame's wake file.
func (e *Engine) apply(states []store.FrameState) error {
	if len(states) == 0 {
		return nil
	}
	if err := e.store.ApplyFrameStates(states); err != nil {
		return err
	}

	var errs []error
	for _, s := range states {
		if err := e.wakeFiles.Write(s.Code, s.ActiveWakeTimes); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func targetStates(frames []store.Frame, action Action, categoryID *int64, wakeTimes string) []store.FrameState {
	states := make([]store.FrameState, len(frames))
	for i, f := range frames {
		s := store.FrameState{FrameID: f.ID, Code: f.Code}
		if action == Activate {
			s.ActiveCategoryID = categoryID
			s.ActiveWakeTimes = wakeTimes
		} else {
			s.ActiveWakeTimes = f.WakeTimes
		}
		states[i] = s
	}
	return states
}

func alreadyApplied(frames []store.Frame, states []store.FrameState) bool {
	for i, f := range frames {
		if !sameID(f.ActiveCategoryID, states[i].ActiveCategoryID) || f.ActiveWakeTimes != states[i].ActiveWakeTimes {
			return false
		}
	}
	return true
}

func allHaveCategory(frames []store.Frame, categoryID *int64) bool {
	for _, f := range frames {
		if !sameID(f.ActiveCategoryID, categoryID) {
			return false
		}
	}
	return true
}

func withStates(frames []store.Frame, states []store.FrameState) []store.Frame {
	out := make([]store.Frame, len(frames))
	for i, f := range frames {
		f.ActiveCategoryID = states[i].ActiveCategoryID
		f.ActiveWakeTimes = states[i].ActiveWakeTimes
		out[i] = f
	}
	return out
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func frameCodes(frames []store.Frame) []string {
	codes := make([]string, len(frames))
	for i, f := range frames {
		codes[i] = f.Code
	}
	return codes
}
