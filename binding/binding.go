// Package binding exposes the coordinator and the service manager to a
// script host as five named functions: add, remove, run, stop and
// isStopRequested.
//
// Host values arrive untyped. Every argument is checked before anything is
// installed, started or stopped, and rejected calls return an
// *svcctl.Error of kind svcctl.KindArgument.
package binding

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/judwhite/go-svcctl"
	"github.com/judwhite/go-svcctl/manager"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Installer adds and removes service records.
type Installer interface {
	Add(opts manager.Options) error
	Remove(name string) error
}

// Module is the host-facing surface of one service.
type Module struct {
	coordinator *svcctl.Coordinator
	installer   Installer
	log         *logrus.Entry
}

// New returns a Module. A nil installer uses manager.New.
func New(c *svcctl.Coordinator, installer Installer, log *logrus.Entry) *Module {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if installer == nil {
		installer = manager.New(log)
	}
	return &Module{
		coordinator: c,
		installer:   installer,
		log:         log,
	}
}

// Call invokes fn with host supplied arguments. Only isStopRequested has a
// result; the other functions return nil on success.
func (m *Module) Call(fn string, args ...interface{}) (interface{}, error) {
	m.log.WithField("fn", fn).Debug("Host call.")

	switch fn {
	case "add":
		opts, err := addOptions(args)
		if err != nil {
			return nil, err
		}
		return nil, m.Add(opts)
	case "remove":
		if err := arity(fn, args, 1, 1); err != nil {
			return nil, err
		}
		name, err := stringArg(fn, "name", args[0])
		if err != nil {
			return nil, err
		}
		return nil, m.Remove(name)
	case "run":
		if err := arity(fn, args, 0, 0); err != nil {
			return nil, err
		}
		return nil, m.Run()
	case "stop":
		if err := arity(fn, args, 0, 1); err != nil {
			return nil, err
		}
		var code uint32
		if len(args) == 1 {
			var err error
			if code, err = exitCodeArg(args[0]); err != nil {
				return nil, err
			}
		}
		m.Stop(code)
		return nil, nil
	case "isStopRequested":
		if err := arity(fn, args, 0, 0); err != nil {
			return nil, err
		}
		return m.IsStopRequested(), nil
	default:
		return nil, argError(fn, errors.New("unknown function"))
	}
}

// Add installs the service record.
func (m *Module) Add(opts manager.Options) error {
	if err := opts.Validate(); err != nil {
		return argError("add", err)
	}
	return m.installer.Add(opts)
}

// Remove deletes the service record.
func (m *Module) Remove(name string) error {
	if err := (manager.Options{Name: name}).Validate(); err != nil {
		return argError("remove", err)
	}
	return m.installer.Remove(name)
}

// Run starts the coordinator.
func (m *Module) Run() error {
	return m.coordinator.Start()
}

// Stop reports the service stopped with exitCode.
func (m *Module) Stop(exitCode uint32) {
	m.coordinator.Stop(exitCode)
}

// IsStopRequested consumes a pending stop request.
func (m *Module) IsStopRequested() bool {
	return m.coordinator.PollStopRequested()
}

// addOptions accepts add(name, options) with a host options object, or the
// positional add(name, displayName, path, [user], [password], [deps]).
func addOptions(args []interface{}) (manager.Options, error) {
	const fn = "add"
	var opts manager.Options

	if err := arity(fn, args, 2, 6); err != nil {
		return opts, err
	}
	name, err := stringArg(fn, "name", args[0])
	if err != nil {
		return opts, err
	}

	if len(args) == 2 && isMap(args[1]) {
		if err := decodeOptions(args[1], &opts); err != nil {
			return opts, argError(fn, err)
		}
		opts.Name = name
		return opts, nil
	}

	if len(args) < 3 {
		return opts, argError(fn, errors.New("name, display name and path are required"))
	}
	opts.Name = name
	if opts.DisplayName, err = stringArg(fn, "display name", args[1]); err != nil {
		return opts, err
	}
	if opts.Path, err = stringArg(fn, "path", args[2]); err != nil {
		return opts, err
	}
	if len(args) > 3 && args[3] != nil {
		if opts.User, err = stringArg(fn, "user", args[3]); err != nil {
			return opts, err
		}
	}
	if len(args) > 4 && args[4] != nil {
		if opts.Password, err = stringArg(fn, "password", args[4]); err != nil {
			return opts, err
		}
	}
	if len(args) > 5 && args[5] != nil {
		if !isSlice(args[5]) {
			return opts, argError(fn, fmt.Errorf("dependencies must be a list, got %T", args[5]))
		}
		deps, err := cast.ToStringSliceE(args[5])
		if err != nil {
			return opts, argError(fn, fmt.Errorf("dependencies: %w", err))
		}
		opts.Dependencies = deps
	}
	return opts, nil
}

func decodeOptions(input interface{}, opts *manager.Options) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           opts,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// exitCodeArg accepts integers, and floats with no fractional part.
func exitCodeArg(v interface{}) (uint32, error) {
	switch x := v.(type) {
	case bool, string, []byte:
		return 0, argError("stop", fmt.Errorf("exit code must be a number, got %T", v))
	case float32:
		if f := float64(x); f != math.Trunc(f) {
			return 0, argError("stop", fmt.Errorf("exit code %v is not an integer", v))
		}
	case float64:
		if x != math.Trunc(x) {
			return 0, argError("stop", fmt.Errorf("exit code %v is not an integer", v))
		}
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, argError("stop", fmt.Errorf("exit code: %w", err))
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, argError("stop", fmt.Errorf("exit code %d out of range", n))
	}
	return uint32(n), nil
}

func stringArg(fn, what string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", argError(fn, fmt.Errorf("%s must be a string, got %T", what, v))
	}
	return s, nil
}

func arity(fn string, args []interface{}, min, max int) error {
	switch {
	case len(args) < min:
		return argError(fn, fmt.Errorf("at least %d arguments required, got %d", min, len(args)))
	case len(args) > max:
		return argError(fn, fmt.Errorf("at most %d arguments allowed, got %d", max, len(args)))
	}
	return nil
}

func argError(fn string, err error) error {
	return &svcctl.Error{Kind: svcctl.KindArgument, Op: fn, Err: err}
}

func isMap(v interface{}) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Map
}

func isSlice(v interface{}) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
