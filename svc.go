/*
Package svcctl lets a long-running program be controlled by the operating
system's service manager without handing its main loop over to it.

Stopping is a two-phase protocol. When the Windows Service Control Manager
(or, elsewhere, SIGINT/SIGTERM) asks the process to stop, the service is
reported stop-pending and a flag is raised. The application notices the
flag with PollStopRequested, finishes its own shutdown, and then calls Stop
with an exit code. Only Stop reports the service stopped.

	c := svcctl.New("my-service")
	if err := c.Start(); err != nil {
		log.Fatal(err)
	}
	for !c.PollStopRequested() {
		doWork()
	}
	drain()
	c.Stop(0)
	<-c.Done()

Programs that prefer callbacks can implement Service and call Run, which
polls on their behalf.

Installing and removing the service record is handled by the manager
package.
*/
package svcctl

import (
	"context"
	"os/signal"
)

// Create variable signal.Notify and signal.Stop functions so we can mock them in tests
var (
	signalNotify = signal.Notify
	signalStop   = signal.Stop
)

// Service interface contains Start and Stop methods which are called
// when the service is started and stopped. The Init method is called
// before the service is started, and after it's determined if the program
// is running as a Windows Service.
//
// The Start and Init methods must be non-blocking.
//
// Implement this interface and pass it to the Run function to start your program.
type Service interface {
	// Init is called before the program/service is started and after it's
	// determined if the program is running as a Windows Service. This method must
	// be non-blocking.
	Init(Environment) error

	// Start is called after Init. This method must be non-blocking.
	Start() error

	// Stop is called once a stop has been requested, either by the service
	// manager or because the Context is done. The service is reported
	// stopped after Stop returns.
	Stop() error
}

// Context interface contains an optional Context function which a Service can implement.
// When implemented the context.Done() channel will be used in addition to stop requests
// to exit a process.
type Context interface {
	Context() context.Context
}

// ExitCoder can be implemented by the error a Service's Stop returns to
// choose the service specific exit code reported to the service manager.
type ExitCoder interface {
	ExitCode() uint32
}

// Environment contains information about the environment
// your application is running in.
type Environment interface {
	// IsWindowsService reports whether the program is running as a Windows Service.
	IsWindowsService() bool
}
