package signal

import "sync/atomic"

// Level is an asynchronous boolean that can be sampled at any time.
type Level interface {
	Level() bool
}

// Const is a level tied high or low at construction time.
type Const bool

func (c Const) Level() bool { return bool(c) }

// IsConst reports whether l is a tied-off level and returns its value.
func IsConst(l Level) (bool, bool) {
	c, ok := l.(Const)
	return bool(c), ok
}

// Wire is a level driven by exactly one owner and sampled by any number of readers.
type Wire struct {
	v atomic.Bool
}

// NewWire returns a wire holding its initial value.
func NewWire(initial bool) *Wire {
	w := &Wire{}
	w.v.Store(initial)
	return w
}

func (w *Wire) Set(v bool) { w.v.Store(v) }

func (w *Wire) Level() bool { return w.v.Load() }

// Func adapts a sampling function to a Level.
type Func func() bool

func (f Func) Level() bool { return f() }

// Or is high while any of its inputs is high.
func Or(in ...Level) Level {
	return Func(func() bool {
		for _, l := range in {
			if l.Level() {
				return true
			}
		}
		return false
	})
}

// Not inverts a level.
func Not(in Level) Level {
	return Func(func() bool { return !in.Level() })
}
