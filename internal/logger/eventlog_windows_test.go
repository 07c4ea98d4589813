//go:build windows
// +build windows

package logger

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestEventLogHook_Levels(t *testing.T) {
	levels := (&EventLogHook{}).Levels()

	for _, l := range []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel} {
		assert.Contains(t, levels, l)
	}
	assert.NotContains(t, levels, log.DebugLevel)
	assert.NotContains(t, levels, log.TraceLevel)
}
