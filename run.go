package svcctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Run runs your Service under the service registered as name.
//
// Run starts a Coordinator, calls Init and Start, then polls for stop
// requests until one arrives or the Service's Context is done. It then
// calls Stop and reports the service stopped: with exit code 0 when Stop
// succeeds, with the error's ExitCode when it implements ExitCoder, and
// with 1 otherwise. Run returns the error from Stop, if any.
func Run(name string, service Service, opts ...Option) error {
	c := New(name, opts...)
	if err := c.Start(); err != nil {
		return err
	}

	if c.IsWindowsService() {
		// the working directory for a Windows Service is C:\Windows\System32
		// this is almost certainly not what the user wants.
		if err := chdirToExecutable(); err != nil {
			c.abort()
			return err
		}
	}

	if err := service.Init(c); err != nil {
		c.abort()
		return err
	}

	if err := service.Start(); err != nil {
		c.abort()
		return err
	}

	var ctx context.Context
	if s, ok := service.(Context); ok {
		ctx = s.Context()
	} else {
		ctx = context.Background()
	}

	c.waitForStop(ctx)

	err := service.Stop()
	c.Stop(exitCodeOf(err))

	<-c.Done()
	if err != nil {
		return err
	}
	return c.Err()
}

// waitForStop polls until a stop is requested, the listener returns, or
// ctx is done.
func (c *Coordinator) waitForStop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.PollStopRequested() {
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// abort reports the service stopped with exit code 1 and waits for the
// listener.
func (c *Coordinator) abort() {
	c.Stop(1)
	<-c.done
}

func exitCodeOf(err error) uint32 {
	if err == nil {
		return 0
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

func chdirToExecutable() error {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return os.Chdir(filepath.Dir(exe))
}
