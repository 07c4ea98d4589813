package svcctl

import (
	"fmt"
	"os"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Create variable daemon.SdNotify function so we can mock it in tests
var sdNotify = daemon.SdNotify

// consoleDispatcher is used when the process is not running under the
// Windows Service Control Manager. The configured signals are delivered as
// stop requests and status is reported to systemd when NOTIFY_SOCKET is set.
type consoleDispatcher struct {
	signals []os.Signal
}

func newConsoleDispatcher(sig []os.Signal) *consoleDispatcher {
	if len(sig) == 0 {
		sig = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return &consoleDispatcher{signals: sig}
}

func (d *consoleDispatcher) IsWindowsService() bool {
	return false
}

func (d *consoleDispatcher) Dispatch(name string, onControl func(Control), body func(StatusHandle) uint32) error {
	signalChan := make(chan os.Signal, 1)
	signalNotify(signalChan, d.signals...)
	defer signalStop(signalChan)

	quit := make(chan struct{})
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for {
			select {
			case <-signalChan:
				onControl(ControlStop)
			case <-quit:
				return
			}
		}
	}()

	body(notifyHandle{})

	close(quit)
	<-forwarded
	return nil
}

// notifyHandle reports status through the systemd notification socket.
// Without NOTIFY_SOCKET every report is a no-op.
type notifyHandle struct{}

func (notifyHandle) SetStatus(rec Record) error {
	var state string
	switch rec.State {
	case Running:
		state = daemon.SdNotifyReady + "\nSTATUS=running"
	case StopPending:
		state = daemon.SdNotifyStopping + "\nSTATUS=stopping"
	case Stopped:
		state = fmt.Sprintf("STATUS=stopped (exit code %d)", rec.ServiceSpecificExitCode)
	default:
		state = "STATUS=" + rec.State.String()
	}
	_, err := sdNotify(false, state)
	return err
}
