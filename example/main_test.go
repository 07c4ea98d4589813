package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/judwhite/go-svcctl/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOptions(t *testing.T) {
	a := &app{cfg: config.Default(), cfgPath: "periodic-logger.yaml"}
	a.cfg.Service.DisplayName = "Periodic Logger"
	a.cfg.Service.Dependencies = []string{"from-config"}

	opts, err := a.addOptions([]string{"periodic-logger", "svc", "secret", "a", "b"})

	require.NoError(t, err)
	abs, err := filepath.Abs("periodic-logger.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "--config", abs}, opts["programArgs"])
	assert.Equal(t, "Periodic Logger", opts["displayName"])
	assert.Equal(t, "svc", opts["username"])
	assert.Equal(t, "secret", opts["password"])
	assert.Equal(t, []string{"a", "b"}, opts["dependencies"])
}

func TestAddOptions_NameOnly(t *testing.T) {
	a := &app{cfg: config.Default()}

	opts, err := a.addOptions([]string{"periodic-logger"})

	require.NoError(t, err)
	assert.Equal(t, []string{"run"}, opts["programArgs"])
	assert.Equal(t, "", opts["username"])
}

func TestServer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "periodic-logger.log")

	s := newServer(path, logrus.NewEntry(logger))
	s.interval = 5 * time.Millisecond
	require.NoError(t, s.start())

	deadline := time.Now().Add(5 * time.Second)
	for {
		b, _ := os.ReadFile(path)
		if strings.Count(string(b), "\n") >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no timestamps written")
		}
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, s.stop())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.SplitN(string(b), "\n", 2)[0]
	_, err = time.Parse(time.RFC1123Z, line)
	assert.NoError(t, err)
}

func TestRootCmd(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"add", "remove", "run"}, names)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}
