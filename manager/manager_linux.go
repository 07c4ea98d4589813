//go:build linux
// +build linux

package manager

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/hashicorp/go-multierror"
)

const scriptMode = 0755

var defaultRunLevels = []int{2, 3, 4, 5}

var systemdUnit = template.Must(template.New("unit").Parse(`[Unit]
Description={{.Description}}
After=network.target
{{- if .Dependencies}}
Requires={{.Dependencies}}
{{- end}}

[Service]
Type=simple
StandardOutput=null
StandardError=null
UMask=0007
ExecStart={{.ExecStart}}
{{- if .User}}
User={{.User}}
{{- end}}

[Install]
WantedBy={{.WantedBy}}
`))

var initScript = template.Must(template.New("init").Parse(`#!/bin/bash

### BEGIN INIT INFO
# Provides:          {{.Name}}
# Required-Start:    {{.Dependencies}}
# Required-Stop:
# Default-Start:     {{.RunLevels}}
# Default-Stop:      0 1 6
# Short-Description: Start {{.Name}} at boot time
# Description:       Enable {{.Name}} service.
### END INIT INFO

# chkconfig:   {{.RunLevelsCompact}} 99 1
# description: {{.Name}}

umask 0007

set_pid () {
	unset PID
	_PID=` + "`" + `head -1 "{{.PIDFile}}" 2>/dev/null` + "`" + `
	if [ $_PID ]; then
		kill -0 $_PID 2>/dev/null && PID=$_PID
	fi
}

force_reload () {
	stop
	start
}

restart () {
	stop
	start
}

start () {
	CNT=5

	set_pid

	if [ -z "$PID" ]; then
		echo starting {{.Name}}

		{{.ExecStart}} >/dev/null 2>&1 &

		echo $! > "{{.PIDFile}}"

		while [ : ]; do
			set_pid

			if [ -n "$PID" ]; then
				echo started {{.Name}}
				break
			else
				if [ $CNT -gt 0 ]; then
					sleep 1
					CNT=` + "`" + `expr $CNT - 1` + "`" + `
				else
					echo ERROR - failed to start {{.Name}}
					break
				fi
			fi
		done
	else
		echo {{.Name}} is already started
	fi
}

status () {
	set_pid

	if [ -z "$PID" ]; then
		exit 1
	else
		exit 0
	fi
}

stop () {
	CNT=5

	set_pid

	if [ -n "$PID" ]; then
		echo stopping {{.Name}}

		kill $PID

		while [ : ]; do
			set_pid

			if [ -z "$PID" ]; then
				rm "{{.PIDFile}}"
				echo stopped {{.Name}}
				break
			else
				if [ $CNT -gt 0 ]; then
					sleep 1
					CNT=` + "`" + `expr $CNT - 1` + "`" + `
				else
					echo ERROR - failed to stop {{.Name}}
					break
				fi
			fi
		done
	else
		echo {{.Name}} is already stopped
	fi
}

case $1 in
	force-reload)
		force_reload
		;;
	restart)
		restart
		;;
	start)
		start
		;;
	status)
		status
		;;
	stop)
		stop
		;;
	*)
		echo "usage: $0 <force-reload|restart|start|status|stop>"
		exit 1
		;;
esac
`))

// unitData feeds both templates.
type unitData struct {
	Name             string
	Description      string
	ExecStart        string
	User             string
	Dependencies     string
	WantedBy         string
	RunLevels        string
	RunLevelsCompact string
	PIDFile          string
}

func newUnitData(opts Options, exepath string) unitData {
	cmd := []string{quote(exepath)}
	for _, arg := range opts.Args {
		cmd = append(cmd, quote(arg))
	}

	levels := opts.RunLevels
	if len(levels) == 0 {
		levels = defaultRunLevels
	}
	var digits []string
	for _, l := range levels {
		digits = append(digits, strconv.Itoa(l))
	}

	description := opts.Description
	if description == "" {
		description = opts.displayName()
	}

	wantedBy := opts.WantedBy
	if wantedBy == "" {
		wantedBy = "multi-user.target"
	}

	return unitData{
		Name:             opts.Name,
		Description:      description,
		ExecStart:        strings.Join(cmd, " "),
		User:             opts.User,
		Dependencies:     strings.Join(opts.Dependencies, " "),
		WantedBy:         wantedBy,
		RunLevels:        strings.Join(digits, " "),
		RunLevelsCompact: strings.Join(digits, ""),
		PIDFile:          exepath + ".pid",
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func (m *Manager) hasSystemd() (bool, error) {
	_, err := os.Stat(m.SystemdDir)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &Error{Op: "stat", Name: m.SystemdDir, Err: err}
}

func (m *Manager) unitPath(name string) string {
	return filepath.Join(m.SystemdDir, name+".service")
}

func (m *Manager) initPath(name string) string {
	return filepath.Join(m.InitDir, name)
}

// Add writes a systemd unit and enables it, or, without systemd, writes a
// SysV init script and registers it with chkconfig or update-rc.d.
func (m *Manager) Add(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	exepath, err := opts.executable()
	if err != nil {
		return &Error{Op: "add", Name: opts.Name, Err: err}
	}
	data := newUnitData(opts, exepath)

	systemd, err := m.hasSystemd()
	if err != nil {
		return err
	}

	if systemd {
		path := m.unitPath(opts.Name)
		if err := m.render(systemdUnit, path, data); err != nil {
			return err
		}
		if err := m.run("systemctl", "enable", opts.Name); err != nil {
			return &Error{Op: "systemctl enable", Name: opts.Name, Err: err}
		}
		m.log.WithField("path", path).Infof("Service %s installed.", opts.Name)
		return nil
	}

	path := m.initPath(opts.Name)
	if err := m.render(initScript, path, data); err != nil {
		return err
	}
	if err := m.registerInit(opts.Name, []string{"--add", opts.Name}, []string{opts.Name, "defaults"}); err != nil {
		return err
	}
	m.log.WithField("path", path).Infof("Service %s installed.", opts.Name)
	return nil
}

// Remove disables the service and deletes its unit file or init script.
func (m *Manager) Remove(name string) error {
	if err := (Options{Name: name}).Validate(); err != nil {
		return err
	}

	installed, err := m.installed(name)
	if err != nil {
		return err
	}
	if !installed {
		return &Error{Op: "remove", Name: name, Err: fmt.Errorf("%w: no unit file or init script", ErrNotInstalled)}
	}

	systemd, err := m.hasSystemd()
	if err != nil {
		return err
	}

	if systemd {
		if err := m.run("systemctl", "disable", name); err != nil {
			return &Error{Op: "systemctl disable", Name: name, Err: err}
		}
	} else {
		if err := m.registerInit(name, []string{"--del", name}, []string{name, "remove"}); err != nil {
			return err
		}
	}

	if err := m.removeFiles(name); err != nil {
		return err
	}
	m.log.Infof("Service %s removed.", name)
	return nil
}

// registerInit runs chkconfig, falling back to update-rc.d when chkconfig
// is not installed.
func (m *Manager) registerInit(name string, chkconfigArgs, updateRcArgs []string) error {
	err := m.run("chkconfig", chkconfigArgs...)
	if err == nil {
		return nil
	}
	if !errors.Is(err, exec.ErrNotFound) {
		return &Error{Op: "chkconfig", Name: name, Err: err}
	}
	if err := m.run("update-rc.d", updateRcArgs...); err != nil {
		return &Error{Op: "update-rc.d", Name: name, Err: err}
	}
	return nil
}

func (m *Manager) render(t *template.Template, path string, data unitData) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return &Error{Op: "render " + t.Name(), Name: data.Name, Err: err}
	}
	if err := os.WriteFile(path, buf.Bytes(), scriptMode); err != nil {
		return &Error{Op: "write", Name: path, Err: err}
	}
	// WriteFile leaves the mode of an existing file alone
	if err := os.Chmod(path, scriptMode); err != nil {
		return &Error{Op: "chmod", Name: path, Err: err}
	}
	return nil
}

// removeFiles deletes whichever of the init script and unit file exist.
// installed reports whether a unit file or init script exists for name.
func (m *Manager) installed(name string) (bool, error) {
	for _, path := range []string{m.unitPath(name), m.initPath(name)} {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, os.ErrNotExist):
		default:
			return false, &Error{Op: "stat", Name: path, Err: err}
		}
	}
	return false, nil
}

func (m *Manager) removeFiles(name string) error {
	var (
		result  *multierror.Error
		removed int
	)
	for _, path := range []string{m.initPath(name), m.unitPath(name)} {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, os.ErrNotExist):
		default:
			result = multierror.Append(result, &Error{Op: "unlink", Name: path, Err: err})
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	if removed == 0 {
		return &Error{Op: "remove", Name: name, Err: fmt.Errorf("%w: no unit file or init script", ErrNotInstalled)}
	}
	return nil
}
