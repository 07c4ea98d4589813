package manager

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	abs, err := filepath.Abs(os.Args[0])
	require.NoError(t, err)

	cases := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"minimal", Options{Name: "periodic-logger"}, false},
		{"full", Options{
			Name:         "periodic-logger",
			DisplayName:  "Periodic Logger",
			Path:         abs,
			Args:         []string{"run"},
			User:         "svc",
			Password:     "secret",
			Dependencies: []string{"network"},
			RunLevels:    []int{3, 5},
		}, false},
		{"empty name", Options{}, true},
		{"name with space", Options{Name: "periodic logger"}, true},
		{"name with slash", Options{Name: "a/b"}, true},
		{"name with quote", Options{Name: `a"b`}, true},
		{"relative path", Options{Name: "x", Path: "bin/x"}, true},
		{"password without user", Options{Name: "x", Password: "secret"}, true},
		{"empty dependency", Options{Name: "x", Dependencies: []string{"a", ""}}, true},
		{"run level too high", Options{Name: "x", RunLevels: []int{7}}, true},
		{"negative run level", Options{Name: "x", RunLevels: []int{-1}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.Validate()
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidOptions))
		})
	}
}

func TestOptions_Defaults(t *testing.T) {
	opts := Options{Name: "periodic-logger"}
	assert.Equal(t, "periodic-logger", opts.displayName())

	opts.DisplayName = "Periodic Logger"
	assert.Equal(t, "Periodic Logger", opts.displayName())

	exe, err := opts.executable()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(exe))

	opts.Path = "/opt/periodic-logger/bin/periodic-logger"
	exe, err = opts.executable()
	require.NoError(t, err)
	assert.Equal(t, opts.Path, exe)
}

func TestError(t *testing.T) {
	err := &Error{Op: "add", Name: "periodic-logger", Err: ErrExists}
	assert.Equal(t, "add periodic-logger: service already exists", err.Error())
	assert.True(t, errors.Is(err, ErrExists))

	err = &Error{Op: "connect", Err: ErrUnsupported}
	assert.Equal(t, "connect: "+ErrUnsupported.Error(), err.Error())
}

func TestRollback(t *testing.T) {
	stepErr := &Error{Op: "install event log source", Name: "periodic-logger", Err: errors.New("access denied")}
	undoErr := errors.New("marked for deletion")

	undone := 0
	err := rollback(stepErr, func() error {
		undone++
		return nil
	})
	assert.Equal(t, 1, undone)
	assert.Same(t, stepErr, err)

	err = rollback(stepErr, func() error { return undoErr })
	require.Error(t, err)
	assert.True(t, errors.Is(err, undoErr))
	var target *Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "install event log source", target.Op)
	assert.Contains(t, err.Error(), "access denied")
	assert.Contains(t, err.Error(), "rollback: marked for deletion")
}

func TestRunCommand(t *testing.T) {
	err := runCommand("svcctl-command-that-does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svcctl-command-that-does-not-exist")
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}
