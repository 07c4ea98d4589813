// Package manager installs and removes the service record that lets the
// operating system start a program as an automatically started service.
//
// On Windows the record is created in the Service Control Manager. On Linux
// a systemd unit is written when systemd is present, and a SysV init script
// otherwise.
package manager

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidOptions is wrapped by every error Validate returns.
	ErrInvalidOptions = errors.New("invalid service options")

	// ErrExists is returned by Add when the service is already installed.
	ErrExists = errors.New("service already exists")

	// ErrNotInstalled is returned by Remove when there is nothing to remove.
	ErrNotInstalled = errors.New("service is not installed")

	// ErrUnsupported is returned on platforms without a service manager.
	ErrUnsupported = errors.New("service management is not supported on this platform")
)

// Error records a failed service manager operation.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options describes the service record.
type Options struct {
	// Name is the service name. Required.
	Name string `mapstructure:"name" yaml:"name"`

	// DisplayName defaults to Name.
	DisplayName string `mapstructure:"displayName" yaml:"display_name"`

	Description string `mapstructure:"description" yaml:"description"`

	// Path is the executable the service runs. Defaults to the current
	// executable.
	Path string `mapstructure:"programPath" yaml:"path"`

	// Args are passed to the executable.
	Args []string `mapstructure:"programArgs" yaml:"args"`

	// User and Password are the credentials the service runs as. An
	// empty User means LocalSystem on Windows and root elsewhere.
	User     string `mapstructure:"username" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`

	// Dependencies are services that must be started first.
	Dependencies []string `mapstructure:"dependencies" yaml:"dependencies"`

	// RunLevels for SysV init scripts. Defaults to 2, 3, 4 and 5.
	RunLevels []int `mapstructure:"runLevels" yaml:"run_levels"`

	// WantedBy is the systemd install target. Defaults to multi-user.target.
	WantedBy string `mapstructure:"systemdWantedBy" yaml:"wanted_by"`

	// EventLog registers Name as a Windows event log source.
	EventLog bool `mapstructure:"eventLog" yaml:"event_log"`
}

// Validate checks opts without touching the system.
func (o Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOptions)
	}
	if strings.ContainsAny(o.Name, " \t\r\n/\\\"'") {
		return fmt.Errorf("%w: name %q contains whitespace, quotes or path separators", ErrInvalidOptions, o.Name)
	}
	if o.Path != "" && !filepath.IsAbs(o.Path) {
		return fmt.Errorf("%w: path %q is not absolute", ErrInvalidOptions, o.Path)
	}
	if o.Password != "" && o.User == "" {
		return fmt.Errorf("%w: password given without user", ErrInvalidOptions)
	}
	for _, dep := range o.Dependencies {
		if dep == "" {
			return fmt.Errorf("%w: empty dependency name", ErrInvalidOptions)
		}
	}
	for _, level := range o.RunLevels {
		if level < 0 || level > 6 {
			return fmt.Errorf("%w: run level %d out of range", ErrInvalidOptions, level)
		}
	}
	return nil
}

// rollback runs undo after a failed step and returns err together with
// any error undo reports.
func rollback(err error, undo func() error) error {
	if uerr := undo(); uerr != nil {
		return multierror.Append(err, fmt.Errorf("rollback: %w", uerr))
	}
	return err
}

func (o Options) displayName() string {
	if o.DisplayName == "" {
		return o.Name
	}
	return o.DisplayName
}

func (o Options) executable() (string, error) {
	if o.Path != "" {
		return o.Path, nil
	}
	p, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// Manager installs and removes service records.
type Manager struct {
	// SystemdDir holds systemd unit files. Linux only.
	SystemdDir string

	// InitDir holds SysV init scripts. Linux only.
	InitDir string

	log *logrus.Entry
	run func(name string, args ...string) error
}

// New returns a Manager using the system locations.
func New(log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		SystemdDir: "/usr/lib/systemd/system",
		InitDir:    "/etc/init.d",
		log:        log,
		run:        runCommand,
	}
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}
