// periodic-logger is a service that writes a timestamp to <exe>.log every
// second until it is stopped. It can install and remove itself.
//
//	periodic-logger add <name> [user] [password] [dep dep ...]
//	periodic-logger remove <name>
//	periodic-logger run
package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/judwhite/go-svcctl"
	"github.com/judwhite/go-svcctl/binding"
	"github.com/judwhite/go-svcctl/internal/config"
	"github.com/judwhite/go-svcctl/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by the commands.
type app struct {
	cfgPath string
	cfg     *config.Config
	log     *logrus.Entry
	closer  io.Closer

	coordinator *svcctl.Coordinator
	module      *binding.Module
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "periodic-logger",
		Short:        "Write a timestamp to a log file every second, as a service",
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(
		newAddCmd(a),
		newRemoveCmd(a),
		newRunCmd(a),
	)
	return cmd
}

// setup loads the config, initializes logging, and builds the module.
func (a *app) setup(eventLog bool) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	params := cfg.Logging
	if eventLog && cfg.Service.EventLog {
		params.EventSource = cfg.Service.Name
	}
	closer, err := logger.Init(logrus.StandardLogger(), params, true)
	if err != nil {
		return err
	}
	a.closer = closer
	a.log = logrus.WithField("service", cfg.Service.Name)

	a.coordinator = svcctl.New(cfg.Service.Name,
		svcctl.WithLogger(a.log),
		svcctl.WithPollInterval(cfg.PollInterval),
	)
	a.module = binding.New(a.coordinator, nil, a.log)
	return nil
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> [user] [password] [dep dep ...]",
		Short: "Install periodic-logger as an automatically started service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			opts, err := a.addOptions(args)
			if err != nil {
				return err
			}
			_, err = a.module.Call("add", args[0], opts)
			return err
		},
	}
}

// addOptions builds the host options object for add. The installed
// service runs "run" with the same config file.
func (a *app) addOptions(args []string) (map[string]interface{}, error) {
	programArgs := []string{"run"}
	if a.cfgPath != "" {
		p, err := filepath.Abs(a.cfgPath)
		if err != nil {
			return nil, err
		}
		programArgs = append(programArgs, "--config", p)
	}

	svc := a.cfg.Service
	opts := map[string]interface{}{
		"displayName":  svc.DisplayName,
		"description":  svc.Description,
		"programArgs":  programArgs,
		"username":     svc.User,
		"password":     svc.Password,
		"dependencies": svc.Dependencies,
		"eventLog":     svc.EventLog,
	}
	if len(args) > 1 {
		opts["username"] = args[1]
	}
	if len(args) > 2 {
		opts["password"] = args[2]
	}
	if len(args) > 3 {
		opts["dependencies"] = args[3:]
	}
	return opts, nil
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove the periodic-logger service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			_, err := a.module.Call("remove", args[0])
			return err
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run periodic-logger until it is stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}
			return a.run()
		},
	}
}

func (a *app) run() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	if _, err := a.module.Call("run"); err != nil {
		return err
	}

	if a.coordinator.IsWindowsService() {
		// the working directory for a Windows Service is C:\Windows\System32
		if err := os.Chdir(filepath.Dir(exe)); err != nil {
			a.abort()
			return err
		}
	}

	srv := newServer(exe+".log", a.log)
	if err := srv.start(); err != nil {
		a.abort()
		return err
	}

	a.waitForStopRequest()

	var code uint32
	if err := srv.stop(); err != nil {
		a.log.WithError(err).Error("Could not close log file.")
		code = 1
	}
	if _, err := a.module.Call("stop", code); err != nil {
		return err
	}

	<-a.coordinator.Done()
	a.log.Info("Stopped.")
	return a.coordinator.Err()
}

// abort reports the service stopped with exit code 1 and waits for the
// listener.
func (a *app) abort() {
	if _, err := a.module.Call("stop", 1); err != nil {
		a.log.WithError(err).Error("Could not stop.")
		return
	}
	<-a.coordinator.Done()
}

// waitForStopRequest polls isStopRequested until it returns true or the
// listener exits.
func (a *app) waitForStopRequest() {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.coordinator.Done():
			return
		case <-ticker.C:
			requested, err := a.module.Call("isStopRequested")
			if err != nil {
				a.log.WithError(err).Error("isStopRequested failed.")
				return
			}
			if requested.(bool) {
				return
			}
		}
	}
}
