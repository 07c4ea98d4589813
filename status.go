package svcctl

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is a service lifecycle state as reported to the service manager.
// The values match the Windows SERVICE_* state constants.
type State uint32

const (
	Uninitialized State = 0
	Stopped       State = 1
	StartPending  State = 2
	StopPending   State = 3
	Running       State = 4
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Stopped:
		return "stopped"
	case StartPending:
		return "start-pending"
	case StopPending:
		return "stop-pending"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Accepted is the set of control requests the service accepts.
type Accepted uint32

const (
	AcceptStop     Accepted = 1
	AcceptShutdown Accepted = 4
)

const (
	// ServiceWin32OwnProcess is the only service type reported.
	ServiceWin32OwnProcess = 0x10

	// NoError is the win32 code for a clean exit.
	NoError = 0

	// ErrorServiceSpecific (ERROR_SERVICE_SPECIFIC_ERROR) tells the service
	// manager to read ServiceSpecificExitCode instead of Win32ExitCode.
	ErrorServiceSpecific = 1066

	// errorGenFailure (ERROR_GEN_FAILURE) stands in for failures that carry
	// no OS error code.
	errorGenFailure = 31

	// DefaultWaitHint bounds how long the service manager waits for the
	// next status report during a pending transition.
	DefaultWaitHint = 10 * time.Second
)

// Record is a service status snapshot. It is built fresh for every report.
type Record struct {
	ServiceType             uint32
	State                   State
	Accepts                 Accepted
	Win32ExitCode           uint32
	ServiceSpecificExitCode uint32
	CheckPoint              uint32
	WaitHint                time.Duration
}

// NewRecord builds the record for state. A non-zero serviceExitCode forces
// Win32ExitCode to ErrorServiceSpecific.
func NewRecord(state State, win32ExitCode, serviceExitCode uint32) Record {
	if serviceExitCode != 0 {
		win32ExitCode = ErrorServiceSpecific
	}
	return Record{
		ServiceType:             ServiceWin32OwnProcess,
		State:                   state,
		Accepts:                 AcceptStop | AcceptShutdown,
		Win32ExitCode:           win32ExitCode,
		ServiceSpecificExitCode: serviceExitCode,
		CheckPoint:              0,
		WaitHint:                DefaultWaitHint,
	}
}

// StatusHandle submits status records to the service manager. It is
// issued by a Dispatcher once the process is registered.
type StatusHandle interface {
	SetStatus(Record) error
}

var errNoHandle = errors.New("no status handle attached")

// Reporter publishes status records through the attached StatusHandle.
// Publishing is serialized; failures are logged and swallowed.
type Reporter struct {
	mu      sync.Mutex
	handle  StatusHandle
	last    Record
	hasLast bool
	log     *logrus.Entry

	// delivered is false while last has not reached any handle.
	delivered bool
}

// NewReporter returns a Reporter with no handle attached.
func NewReporter(log *logrus.Entry) *Reporter {
	return &Reporter{log: log}
}

// attach sets the handle. A record published while no handle was
// attached is delivered to h before attach returns.
func (r *Reporter) attach(h StatusHandle) {
	r.mu.Lock()
	r.handle = h
	if !r.hasLast || r.delivered {
		r.mu.Unlock()
		return
	}
	rec := r.last
	r.delivered = true
	err := h.SetStatus(rec)
	r.mu.Unlock()

	r.logResult(rec, err)
}

// detach drops the handle. Once it returns no further SetStatus call
// reaches the old handle.
func (r *Reporter) detach() {
	r.mu.Lock()
	r.handle = nil
	r.mu.Unlock()
}

// Publish reports state with the given exit codes.
func (r *Reporter) Publish(state State, win32ExitCode, serviceExitCode uint32) {
	r.publish(NewRecord(state, win32ExitCode, serviceExitCode))
}

// Refresh reports the last published record again.
func (r *Reporter) Refresh() {
	r.mu.Lock()
	if !r.hasLast {
		r.mu.Unlock()
		return
	}
	rec := r.last
	err := r.setLocked(rec)
	r.mu.Unlock()

	r.logResult(rec, err)
}

// Last returns the most recently published record.
func (r *Reporter) Last() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// publishFirst publishes rec only if nothing has been published yet.
func (r *Reporter) publishFirst(rec Record) bool {
	r.mu.Lock()
	if r.hasLast {
		r.mu.Unlock()
		return false
	}
	err := r.setLocked(rec)
	r.mu.Unlock()

	r.logResult(rec, err)
	return true
}

func (r *Reporter) publish(rec Record) {
	r.mu.Lock()
	err := r.setLocked(rec)
	r.mu.Unlock()

	r.logResult(rec, err)
}

func (r *Reporter) setLocked(rec Record) error {
	r.last, r.hasLast = rec, true
	r.delivered = r.handle != nil
	if r.handle == nil {
		return errNoHandle
	}
	return r.handle.SetStatus(rec)
}

func (r *Reporter) logResult(rec Record, err error) {
	fields := logrus.Fields{
		"state":                   rec.State.String(),
		"win32ExitCode":           rec.Win32ExitCode,
		"serviceSpecificExitCode": rec.ServiceSpecificExitCode,
	}
	if err != nil {
		r.log.WithFields(fields).WithError(&Error{Kind: KindStatusPublish, Op: "publish", Err: err}).Warn("Status report failed.")
		return
	}
	r.log.WithFields(fields).Debug("Status reported.")
}
