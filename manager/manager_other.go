//go:build !linux && !windows
// +build !linux,!windows

package manager

// Add is not supported on this platform.
func (m *Manager) Add(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	return &Error{Op: "add", Name: opts.Name, Err: ErrUnsupported}
}

// Remove is not supported on this platform.
func (m *Manager) Remove(name string) error {
	return &Error{Op: "remove", Name: name, Err: ErrUnsupported}
}
