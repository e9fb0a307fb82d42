package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// TimeSource provides the time for controlling logic, injectable so
// time-driven behavior is testable.
type TimeSource interface {
	Time() time.Time
}

// Controller is one unit of work executed every service cycle.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// ControlContext is the context of one service cycle iteration.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// PriorityLevel gets the current priority level.
	PriorityLevel() int

	LoopControl
}

// PriorityLevels is the total number of priority levels.
const PriorityLevels int = 8

// Priority levels, highest first. Safety checks always run before
// anything that could act on their findings.
const (
	PrLvSafety  int = 0
	PrLvSense   int = 2
	PrLvControl int = 4
	PrLvComm    int = 6
	PrLvIdle    int = PriorityLevels - 1
)

// LoopControl exposes access to the running loop.
type LoopControl interface {
	// PostRunAt injects a one-shot controller hook at the given
	// priority level, executed after that level's registered
	// controllers in the current (or next) iteration.
	PostRunAt(priorityLevel int, controllers ...Controller)
	// TriggerNext schedules the next iteration immediately instead of
	// waiting for the interval tick.
	TriggerNext()
}
