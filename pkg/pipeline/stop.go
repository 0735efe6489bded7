package pipeline

import (
	"sync"
	"sync/atomic"
)

// StopToken is a cooperative stop signal shared by every stage of a run.
// Stop is idempotent and safe to call from any goroutine.
type StopToken struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewStopToken creates an unraised StopToken
func NewStopToken() *StopToken {
	return &StopToken{done: make(chan struct{})}
}

// Stop raises the token
func (s *StopToken) Stop() {
	s.stopped.Store(true)
	s.once.Do(func() { close(s.done) })
}

// Stopped reports whether Stop was called. A nil token is never stopped.
func (s *StopToken) Stopped() bool {
	return s != nil && s.stopped.Load()
}

// Done returns a channel closed by Stop. A nil token returns a nil channel.
func (s *StopToken) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.done
}
