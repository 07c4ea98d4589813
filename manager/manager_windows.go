//go:build windows
// +build windows

package manager

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

// Add creates an automatically started, own-process service.
func (m *Manager) Add(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	exepath, err := opts.executable()
	if err != nil {
		return &Error{Op: "add", Name: opts.Name, Err: err}
	}

	scm, err := mgr.Connect()
	if err != nil {
		return &Error{Op: "connect to service control manager", Err: err}
	}
	defer scm.Disconnect()

	s, err := scm.OpenService(opts.Name)
	if err == nil {
		s.Close()
		return &Error{Op: "add", Name: opts.Name, Err: ErrExists}
	}

	s, err = scm.CreateService(opts.Name, exepath, mgr.Config{
		ServiceType:      windows.SERVICE_WIN32_OWN_PROCESS,
		StartType:        mgr.StartAutomatic,
		ErrorControl:     mgr.ErrorNormal,
		DisplayName:      opts.displayName(),
		Description:      opts.Description,
		ServiceStartName: opts.User,
		Password:         opts.Password,
		Dependencies:     opts.Dependencies,
	}, opts.Args...)
	if err != nil {
		return &Error{Op: "create service", Name: opts.Name, Err: err}
	}
	defer s.Close()

	if opts.EventLog {
		err = eventlog.InstallAsEventCreate(opts.Name, eventlog.Error|eventlog.Warning|eventlog.Info)
		if err != nil {
			return rollback(&Error{Op: "install event log source", Name: opts.Name, Err: err}, s.Delete)
		}
	}

	m.log.WithField("path", exepath).Infof("Service %s installed.", opts.Name)
	return nil
}

// Remove deletes the service and its event log source, if any.
func (m *Manager) Remove(name string) error {
	if err := (Options{Name: name}).Validate(); err != nil {
		return err
	}

	scm, err := mgr.Connect()
	if err != nil {
		return &Error{Op: "connect to service control manager", Err: err}
	}
	defer scm.Disconnect()

	s, err := scm.OpenService(name)
	if err != nil {
		return &Error{Op: "remove", Name: name, Err: fmt.Errorf("%w: %v", ErrNotInstalled, err)}
	}
	defer s.Close()

	var result *multierror.Error
	if err := s.Delete(); err != nil {
		result = multierror.Append(result, &Error{Op: "delete service", Name: name, Err: err})
	}
	// the source only exists when the service was added with EventLog
	if err := eventlog.Remove(name); err != nil && !isNotFound(err) {
		result = multierror.Append(result, &Error{Op: "remove event log source", Name: name, Err: err})
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	m.log.Infof("Service %s removed.", name)
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, windows.ERROR_FILE_NOT_FOUND)
}
