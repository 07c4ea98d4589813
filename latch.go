package svcctl

import "sync"

// stopFlag latches control requests until the application polls for them.
type stopFlag struct {
	mu  sync.Mutex
	set bool
}

func (f *stopFlag) raise() {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
}

// take reports whether a request arrived since the last call and clears it.
func (f *stopFlag) take() bool {
	f.mu.Lock()
	set := f.set
	f.set = false
	f.mu.Unlock()
	return set
}

// shutdownSignal releases the listener once the application has finished
// its own shutdown. The predicate is checked under the lock, so a signal
// sent before the listener reaches wait is not lost.
type shutdownSignal struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool
	exitCode uint32
}

func newShutdownSignal() *shutdownSignal {
	s := &shutdownSignal{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// signal wakes the waiter with exitCode. Only the first call has an
// effect; it returns false for every later call.
func (s *shutdownSignal) signal(exitCode uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signaled {
		return false
	}
	s.signaled = true
	s.exitCode = exitCode
	s.cond.Signal()
	return true
}

// wait blocks until signal is called and returns its exit code.
func (s *shutdownSignal) wait() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.signaled {
		s.cond.Wait()
	}
	return s.exitCode
}
