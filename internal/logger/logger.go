// Package logger configures a logrus logger for a service process: an
// optional rotated log file, an optional console, and on Windows an
// optional event log source.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = TextFormat
	DefaultMaxLogFiles = 10
	MaxFilesLimit      = 20
	DefaultMaxLogSize  = 100  // in MiB
	MaxLogSizeLimit    = 1024 // in MiB
	JSONFormat         = "json"
	TextFormat         = "text"
)

// Params configures logging. Zero and out-of-range values fall back to the
// defaults above.
type Params struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxFiles   int    `yaml:"max_files"`
	MaxSizeMiB int    `yaml:"max_size_mib"`
	Format     string `yaml:"format"`

	// EventSource is the Windows event log source to write to. Ignored on
	// other platforms.
	EventSource string `yaml:"-"`
}

func (p Params) GetLevel() string {
	if _, err := log.ParseLevel(p.Level); err != nil || p.Level == "" {
		return DefaultLogLevel
	}
	return p.Level
}

func (p Params) GetMaxFiles() int {
	if p.MaxFiles <= 0 || p.MaxFiles > MaxFilesLimit {
		return DefaultMaxLogFiles
	}
	return p.MaxFiles
}

func (p Params) GetMaxSize() int {
	if p.MaxSizeMiB <= 0 || p.MaxSizeMiB > MaxLogSizeLimit {
		return DefaultMaxLogSize
	}
	return p.MaxSizeMiB
}

func (p Params) GetFormat() string {
	switch p.Format {
	case JSONFormat, TextFormat:
		return p.Format
	default:
		return DefaultLogFormat
	}
}

func (p Params) formatter() log.Formatter {
	if p.GetFormat() == JSONFormat {
		return &log.JSONFormatter{}
	}
	return &log.TextFormatter{FullTimestamp: true}
}

// applyEnv overrides p from LOG_LEVEL, LOG_FILE, LOG_MAX_SIZE,
// LOG_MAX_FILES and LOG_FORMAT.
func (p Params) applyEnv() Params {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		p.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		p.File = file
	}
	if maxSize := os.Getenv("LOG_MAX_SIZE"); maxSize != "" {
		if size, err := strconv.ParseInt(maxSize, 0, 0); err == nil {
			p.MaxSizeMiB = int(size)
		}
	}
	if maxFiles := os.Getenv("LOG_MAX_FILES"); maxFiles != "" {
		if n, err := strconv.ParseInt(maxFiles, 0, 0); err == nil {
			p.MaxFiles = int(n)
		}
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		p.Format = format
	}
	return p
}

// Init configures l from params and the environment. All output goes
// through hooks; l's own output is discarded. The returned Closer releases
// the log file and event log handles.
func Init(l *log.Logger, params Params, console bool) (io.Closer, error) {
	params = params.applyEnv()

	level, err := log.ParseLevel(params.GetLevel())
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)
	l.SetOutput(io.Discard)

	var closers closerList

	if params.File != "" {
		hook := NewFileHook(params)
		l.AddHook(hook)
		closers = append(closers, hook)
	}
	if console {
		l.AddHook(NewConsoleHook(params, os.Stdout, os.Stderr))
	}
	if params.EventSource != "" {
		c, err := addEventLogHook(l, params.EventSource)
		if err != nil {
			closers.Close()
			return nil, fmt.Errorf("could not open event log source %s: %w", params.EventSource, err)
		}
		if c != nil {
			closers = append(closers, c)
		}
	}

	l.WithFields(log.Fields{
		"logLevel":        l.GetLevel().String(),
		"logFileLocation": params.File,
		"alsoLogToStderr": console,
	}).Info("Initialized logging.")

	return closers, nil
}

type closerList []io.Closer

func (cl closerList) Close() error {
	var result *multierror.Error
	for _, c := range cl {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ConsoleHook writes entries to stdout, or stderr for errors.
type ConsoleHook struct {
	stdout, stderr       io.Writer
	outFormat, errFormat log.Formatter
}

// NewConsoleHook creates a hook writing to stdout and stderr. Text output
// is colored when the stream is a terminal.
func NewConsoleHook(params Params, stdout, stderr io.Writer) *ConsoleHook {
	return &ConsoleHook{
		stdout:    stdout,
		stderr:    stderr,
		outFormat: consoleFormatter(params, stdout),
		errFormat: consoleFormatter(params, stderr),
	}
}

func consoleFormatter(params Params, w io.Writer) log.Formatter {
	f := params.formatter()
	//https://github.com/sirupsen/logrus/issues/172
	if tf, ok := f.(*log.TextFormatter); ok && runtime.GOOS != "windows" {
		tf.ForceColors = isTerminal(w)
	}
	return f
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (hook *ConsoleHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook *ConsoleHook) Fire(entry *log.Entry) error {
	w, f := hook.stdout, hook.outFormat
	if entry.Level <= log.ErrorLevel {
		w, f = hook.stderr, hook.errFormat
	}

	line, err := f.Format(entry)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}

// FileHook writes entries to a rotated log file.
type FileHook struct {
	formatter log.Formatter
	mu        sync.Mutex
	out       *lumberjack.Logger
}

// NewFileHook creates a hook writing to params.File. The file is opened on
// the first write.
func NewFileHook(params Params) *FileHook {
	return &FileHook{
		formatter: params.formatter(),
		out: &lumberjack.Logger{
			Filename:   params.File,
			MaxSize:    params.GetMaxSize(),
			MaxBackups: params.GetMaxFiles(),
			MaxAge:     30,
			Compress:   true,
		},
	}
}

func (hook *FileHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook *FileHook) Fire(entry *log.Entry) error {
	line, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}

	// CRLF line endings on Windows
	if runtime.GOOS == "windows" && len(line) > 0 && line[len(line)-1] == '\n' &&
		(len(line) == 1 || line[len(line)-2] != '\r') {
		line = append(line[:len(line)-1], '\r', '\n')
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	_, err = hook.out.Write(line)
	return err
}

func (hook *FileHook) Close() error {
	hook.mu.Lock()
	defer hook.mu.Unlock()
	return hook.out.Close()
}
