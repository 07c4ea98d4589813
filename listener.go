package svcctl

import "github.com/sirupsen/logrus"

// Control is a control request delivered by the service manager.
type Control uint32

const (
	ControlStop        Control = 1
	ControlInterrogate Control = 4
	ControlShutdown    Control = 5
)

func (c Control) String() string {
	switch c {
	case ControlStop:
		return "stop"
	case ControlInterrogate:
		return "interrogate"
	case ControlShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Dispatcher connects a process to the service manager's control channel.
//
// Dispatch registers the process under name and installs onControl as the
// control callback. Once registered it calls body with the status handle
// and reports the code body returns as the final exit code. Dispatch
// returns when body has returned, or immediately if registration fails.
//
// onControl may be called from any goroutine, concurrently with body.
type Dispatcher interface {
	Dispatch(name string, onControl func(Control), body func(StatusHandle) uint32) error

	// IsWindowsService reports whether Dispatch talks to the Windows
	// Service Control Manager.
	IsWindowsService() bool
}

// listen runs on the listener goroutine for the lifetime of the service.
func (c *Coordinator) listen() {
	defer close(c.done)

	err := c.dispatcher.Dispatch(c.name, c.handleControl, func(h StatusHandle) uint32 {
		// A Stop that ran before registration completed has already
		// published; attach delivers its record and Running is skipped.
		c.reporter.attach(h)
		defer c.reporter.detach()

		if c.reporter.publishFirst(NewRecord(Running, NoError, 0)) {
			c.log.Info("Service running.")
		}

		// Only Stop releases this wait; a stop request from the service
		// manager merely raises the flag the application polls.
		code := c.shutdown.wait()
		c.log.WithField("exitCode", code).Debug("Shutdown signaled.")

		// The handle stays attached until Stop has reported Stopped.
		<-c.stopPublished
		return code
	})
	if err != nil {
		err = &Error{Kind: KindRegistration, Op: "dispatch", Err: err}
		c.log.WithError(err).Error("Service registration failed.")
		c.reporter.Publish(Stopped, errnoOf(err), 0)
		c.setState(Stopped)
		c.setErr(err)
		return
	}
	c.log.Info("Service dispatcher returned.")
}

// handleControl is the control callback. It only takes the flag and
// reporter locks and never blocks on the application.
func (c *Coordinator) handleControl(ctl Control) {
	switch ctl {
	case ControlStop, ControlShutdown:
		if c.State() != Stopped {
			c.reporter.Publish(StopPending, NoError, 0)
		}
		c.stopRequested.raise()
		c.transition(Running, StopPending)
		c.log.WithFields(logrus.Fields{"control": ctl.String()}).Info("Stop requested.")
	case ControlInterrogate:
		c.reporter.Refresh()
	default:
		c.log.WithField("control", uint32(ctl)).Debug("Ignoring control request.")
	}
}
