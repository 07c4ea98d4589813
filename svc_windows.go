//go:build windows
// +build windows

package svcctl

import (
	"os"
	"time"

	wsvc "golang.org/x/sys/windows/svc"
)

// Create variables for svc functions so we can mock them in tests
var (
	svcIsWindowsService = wsvc.IsWindowsService
	svcRun              = wsvc.Run
)

// defaultDispatcher dispatches through the Service Control Manager when the
// process was started by it. From a console, Ctrl+C is treated like a Stop
// Service request.
func defaultDispatcher(sig []os.Signal) (Dispatcher, error) {
	isWindowsService, err := svcIsWindowsService()
	if err != nil {
		return nil, err
	}
	if !isWindowsService {
		if len(sig) == 0 {
			sig = []os.Signal{os.Interrupt}
		}
		return newConsoleDispatcher(sig), nil
	}
	return scmDispatcher{}, nil
}

type scmDispatcher struct{}

func (scmDispatcher) IsWindowsService() bool {
	return true
}

// Dispatch blocks in StartServiceCtrlDispatcher until Execute returns.
func (scmDispatcher) Dispatch(name string, onControl func(Control), body func(StatusHandle) uint32) error {
	return svcRun(name, &scmHandler{onControl: onControl, body: body})
}

// scmHandler implements svc.Handler
type scmHandler struct {
	onControl func(Control)
	body      func(StatusHandle) uint32
}

// Execute is invoked by Windows
func (h *scmHandler) Execute(args []string, r <-chan wsvc.ChangeRequest, changes chan<- wsvc.Status) (bool, uint32) {
	changes <- wsvc.Status{State: wsvc.StartPending}

	// r must keep draining while body waits, or the next control
	// request blocks the SCM's control thread.
	quit := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case c := <-r:
				switch c.Cmd {
				case wsvc.Interrogate:
					h.onControl(ControlInterrogate)
				case wsvc.Stop:
					h.onControl(ControlStop)
				case wsvc.Shutdown:
					h.onControl(ControlShutdown)
				default:
				}
			case <-quit:
				return
			}
		}
	}()

	code := h.body(changeHandle(changes))

	close(quit)
	<-drained

	// x/sys/windows/svc reports Stopped with ERROR_SERVICE_SPECIFIC_ERROR
	// and code when the first result is true.
	return code != 0, code
}

// changeHandle forwards status records to x/sys/windows/svc. It is only
// valid while Execute runs.
type changeHandle chan<- wsvc.Status

func (h changeHandle) SetStatus(rec Record) error {
	if rec.State == Stopped {
		// reported by x/sys/windows/svc once Execute returns
		return nil
	}
	h <- wsvc.Status{
		State:                   wsvc.State(rec.State),
		Accepts:                 wsvc.Accepted(rec.Accepts),
		CheckPoint:              rec.CheckPoint,
		WaitHint:                uint32(rec.WaitHint / time.Millisecond),
		Win32ExitCode:           rec.Win32ExitCode,
		ServiceSpecificExitCode: rec.ServiceSpecificExitCode,
	}
	return nil
}
