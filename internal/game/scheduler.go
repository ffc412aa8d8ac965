package game

import "time"

// Timer is a scheduled commit that may be stopped before it fires.
// *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Implementations may call f on another
// goroutine, or inline from AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// WallClock schedules commits with time.AfterFunc.
var WallClock Scheduler = wallClock{}
