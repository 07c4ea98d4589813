//go:build !windows
// +build !windows

package logger

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// addEventLogHook is a no-op; there is no event log outside Windows.
func addEventLogHook(*log.Logger, string) (io.Closer, error) {
	return nil, nil
}
