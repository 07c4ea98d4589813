//go:build !windows
// +build !windows

package svcctl

import "os"

// defaultDispatcher treats syscall.SIGINT and syscall.SIGTERM, or the
// signals given with WithSignals, as stop requests.
func defaultDispatcher(sig []os.Signal) (Dispatcher, error) {
	return newConsoleDispatcher(sig), nil
}
