//go:build windows
// +build windows

package logger

import (
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows/svc/eventlog"
)

const eventID = 1

// EventLogHook writes info, warning and error entries to the Windows event
// log. Debug and trace entries are not written.
type EventLogHook struct {
	formatter log.Formatter
	elog      *eventlog.Log
}

func addEventLogHook(l *log.Logger, source string) (io.Closer, error) {
	elog, err := eventlog.Open(source)
	if err != nil {
		return nil, err
	}
	hook := &EventLogHook{
		formatter: &log.TextFormatter{DisableTimestamp: true, DisableColors: true},
		elog:      elog,
	}
	l.AddHook(hook)
	return hook, nil
}

func (hook *EventLogHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel}
}

func (hook *EventLogHook) Fire(entry *log.Entry) error {
	b, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}
	msg := string(b)

	switch entry.Level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		return hook.elog.Error(eventID, msg)
	case log.WarnLevel:
		return hook.elog.Warning(eventID, msg)
	default:
		return hook.elog.Info(eventID, msg)
	}
}

func (hook *EventLogHook) Close() error {
	return hook.elog.Close()
}
