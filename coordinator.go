package svcctl

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often Run polls for stop requests.
const DefaultPollInterval = 2 * time.Second

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDispatcher replaces the platform dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Coordinator) {
		c.dispatcher = d
	}
}

// WithLogger sets the log entry used by the coordinator.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithPollInterval sets how often Run polls for stop requests.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithSignals sets the signals treated as stop requests when the process
// is not running under the Windows Service Control Manager. The default is
// SIGINT and SIGTERM.
func WithSignals(sig ...os.Signal) Option {
	return func(c *Coordinator) {
		c.signals = sig
	}
}

// Coordinator ties the service manager's control thread to the
// application. The service manager's stop request only raises a flag that
// the application consumes with PollStopRequested; the service is reported
// stopped when the application calls Stop.
type Coordinator struct {
	name         string
	dispatcher   Dispatcher
	log          *logrus.Entry
	pollInterval time.Duration
	signals      []os.Signal
	probe        func([]os.Signal) (Dispatcher, error)

	reporter      *Reporter
	stopRequested stopFlag
	shutdown      *shutdownSignal
	stopPublished chan struct{}
	done          chan struct{}

	startMu sync.Mutex
	started bool

	stateMu     sync.Mutex
	state       State
	stopCalled  bool
	dispatchErr error
}

// New returns a Coordinator for the service registered as name.
func New(name string, opts ...Option) *Coordinator {
	c := &Coordinator{
		name:          name,
		pollInterval:  DefaultPollInterval,
		probe:         defaultDispatcher,
		shutdown:      newShutdownSignal(),
		stopPublished: make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.WithField("service", name)
	}
	c.reporter = NewReporter(c.log)
	return c
}

// Start launches the listener goroutine. Calling it again is a no-op.
// An error leaves the coordinator uninitialized.
func (c *Coordinator) Start() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.started {
		return nil
	}

	if c.dispatcher == nil {
		d, err := c.probe(c.signals)
		if err != nil {
			return &Error{Kind: KindPrimitive, Op: "start", Err: err}
		}
		c.dispatcher = d
	}

	c.setState(Running)
	go c.listen()
	c.started = true

	c.log.WithField("windowsService", c.dispatcher.IsWindowsService()).Debug("Listener started.")
	return nil
}

func (c *Coordinator) isStarted() bool {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	return c.started
}

// IsWindowsService reports whether the coordinator dispatches through the
// Windows Service Control Manager. It is false before Start.
func (c *Coordinator) IsWindowsService() bool {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	return c.started && c.dispatcher.IsWindowsService()
}

// PollStopRequested reports whether a stop or shutdown request arrived
// since the previous call. It never blocks and is always false before
// Start.
func (c *Coordinator) PollStopRequested() bool {
	if !c.isStarted() {
		return false
	}
	return c.stopRequested.take()
}

// Stop reports the service stopped with the given service specific exit
// code and releases the listener. It does nothing before Start, and only
// the first call after Start has an effect.
func (c *Coordinator) Stop(exitCode uint32) {
	if !c.isStarted() {
		return
	}
	if !c.beginStop() {
		c.log.WithField("exitCode", exitCode).Debug("Service already stopped.")
		return
	}

	c.reporter.Publish(StopPending, NoError, 0)
	c.setState(StopPending)
	c.shutdown.signal(exitCode)
	c.reporter.Publish(Stopped, NoError, exitCode)
	c.setState(Stopped)
	close(c.stopPublished)

	c.log.WithField("exitCode", exitCode).Info("Service stopped.")
}

// Done is closed once the listener has returned.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the listener has returned or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the registration error, if the listener failed to register.
func (c *Coordinator) Err() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.dispatchErr
}

// State returns the coordinator's lifecycle state.
func (c *Coordinator) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// LastStatus returns the most recently published status record.
func (c *Coordinator) LastStatus() (Record, bool) {
	return c.reporter.Last()
}

func (c *Coordinator) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

func (c *Coordinator) setErr(err error) {
	c.stateMu.Lock()
	c.dispatchErr = err
	c.stateMu.Unlock()
}

// transition moves from one state to another only if the current state
// is from.
func (c *Coordinator) transition(from, to State) {
	c.stateMu.Lock()
	if c.state == from {
		c.state = to
	}
	c.stateMu.Unlock()
}

func (c *Coordinator) beginStop() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.stopCalled || c.state == Stopped {
		return false
	}
	c.stopCalled = true
	return true
}
