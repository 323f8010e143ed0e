package util

import (
	"log"
	"sync"
)

// SigHandler receives the emitting object and any extra params.
type SigHandler func(sender any, params ...any)

// Signals is a small synchronous in-process event bus. Handlers run on the
// emitter's goroutine in the order they were connected.
type Signals struct {
	mu       sync.RWMutex
	handlers map[string][]SigHandler
	onPanic  func(event string, r any)
}

func NewSignals() *Signals {
	return &Signals{handlers: make(map[string][]SigHandler)}
}

// OnPanic installs a hook invoked when a handler panics. The panic is
// swallowed so one bad listener cannot fail the emitting operation.
func (s *Signals) OnPanic(fn func(event string, r any)) {
	s.mu.Lock()
	s.onPanic = fn
	s.mu.Unlock()
}

func (s *Signals) Connect(event string, h SigHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

// Emit returns the number of handlers that ran without panicking.
func (s *Signals) Emit(event string, sender any, params ...any) int {
	s.mu.RLock()
	hs := append([]SigHandler(nil), s.handlers[event]...)
	onPanic := s.onPanic
	s.mu.RUnlock()

	ok := 0
	for _, h := range hs {
		if s.call(event, h, onPanic, sender, params...) {
			ok++
		}
	}
	return ok
}

func (s *Signals) call(event string, h SigHandler, onPanic func(string, any), sender any, params ...any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if onPanic != nil {
				onPanic(event, r)
			} else {
				log.Printf("signal %s handler panic: %v", event, r)
			}
		}
	}()
	h(sender, params...)
	return true
}
