package svcctl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProgram struct {
	start func() error
	stop  func() error
	init  func(Environment) error
	ctx   context.Context
}

func (p *mockProgram) Start() error {
	return p.start()
}

func (p *mockProgram) Stop() error {
	return p.stop()
}

func (p *mockProgram) Init(wse Environment) error {
	return p.init(wse)
}

func makeProgram(startCalled, stopCalled, initCalled *int) *mockProgram {
	return &mockProgram{
		start: func() error {
			*startCalled++
			return nil
		},
		stop: func() error {
			*stopCalled++
			return nil
		},
		init: func(wse Environment) error {
			*initCalled++
			return nil
		},
	}
}

type contextProgram struct {
	*mockProgram
}

func (p contextProgram) Context() context.Context {
	return p.ctx
}

type exitError uint32

func (e exitError) Error() string    { return "exit error" }
func (e exitError) ExitCode() uint32 { return uint32(e) }

func runOptions(d Dispatcher) []Option {
	logger, _ := test.NewNullLogger()
	return []Option{
		WithDispatcher(d),
		WithLogger(logrus.NewEntry(logger)),
		WithPollInterval(5 * time.Millisecond),
	}
}

func runAsync(service Service, d Dispatcher) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- Run("svcctl-test", service, runOptions(d)...)
	}()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRun_StopRequest(t *testing.T) {
	// arrange
	var startCalled, stopCalled, initCalled int
	prg := makeProgram(&startCalled, &stopCalled, &initCalled)
	var isWindowsService bool
	prg.init = func(env Environment) error {
		initCalled++
		isWindowsService = env.IsWindowsService()
		return nil
	}
	d := newFakeDispatcher()

	// act
	errc := runAsync(prg, d)
	waitRunning(t, d)
	d.deliver(ControlStop)
	err := waitRun(t, errc)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, initCalled)
	assert.Equal(t, 1, startCalled)
	assert.Equal(t, 1, stopCalled)
	assert.False(t, isWindowsService)

	code, exited := d.result()
	assert.True(t, exited)
	assert.Equal(t, uint32(0), code)
}

func TestRun_StopErrorExitCode(t *testing.T) {
	var startCalled, stopCalled, initCalled int
	prg := makeProgram(&startCalled, &stopCalled, &initCalled)
	prg.stop = func() error {
		stopCalled++
		return exitError(42)
	}
	d := newFakeDispatcher()

	errc := runAsync(prg, d)
	waitRunning(t, d)
	d.deliver(ControlShutdown)
	err := waitRun(t, errc)

	assert.Equal(t, "exit error", err.Error())
	assert.Equal(t, 1, stopCalled)
	code, _ := d.result()
	assert.Equal(t, uint32(42), code)
}

func TestRun_StopErrorWithoutCode(t *testing.T) {
	var startCalled, stopCalled, initCalled int
	prg := makeProgram(&startCalled, &stopCalled, &initCalled)
	prg.stop = func() error {
		stopCalled++
		return errors.New("stop error")
	}
	d := newFakeDispatcher()

	errc := runAsync(prg, d)
	waitRunning(t, d)
	d.deliver(ControlStop)
	err := waitRun(t, errc)

	assert.Equal(t, "stop error", err.Error())
	code, _ := d.result()
	assert.Equal(t, uint32(1), code)
}

func TestRun_StartError(t *testing.T) {
	var startCalled, stopCalled, initCalled int
	prg := makeProgram(&startCalled, &stopCalled, &initCalled)
	prg.start = func() error {
		startCalled++
		return errors.New("start error")
	}
	d := newFakeDispatcher()

	err := waitRun(t, runAsync(prg, d))

	assert.Equal(t, "start error", err.Error())
	assert.Equal(t, 1, initCalled)
	assert.Equal(t, 1, startCalled)
	assert.Equal(t, 0, stopCalled)
	code, _ := d.result()
	assert.Equal(t, uint32(1), code)
}

func TestRun_InitError(t *testing.T) {
	var startCalled, stopCalled, initCalled int
	prg := makeProgram(&startCalled, &stopCalled, &initCalled)
	prg.init = func(Environment) error {
		initCalled++
		return errors.New("before start error")
	}
	d := newFakeDispatcher()

	err := waitRun(t, runAsync(prg, d))

	assert.Equal(t, "before start error", err.Error())
	assert.Equal(t, 1, initCalled)
	assert.Equal(t, 0, startCalled)
	assert.Equal(t, 0, stopCalled)
}

func TestRun_ContextDone(t *testing.T) {
	var startCalled, stopCalled, initCalled int
	prg := makeProgram(&startCalled, &stopCalled, &initCalled)
	ctx, cancel := context.WithCancel(context.Background())
	prg.ctx = ctx
	d := newFakeDispatcher()

	errc := runAsync(contextProgram{prg}, d)
	waitRunning(t, d)
	cancel()
	err := waitRun(t, errc)

	require.NoError(t, err)
	assert.Equal(t, 1, stopCalled)
}

func TestRun_RegistrationError(t *testing.T) {
	var startCalled, stopCalled, initCalled int
	prg := makeProgram(&startCalled, &stopCalled, &initCalled)
	d := newFakeDispatcher()
	d.registerErr = errors.New("wsvc.Run error")

	err := waitRun(t, runAsync(prg, d))

	require.Error(t, err)
	assert.True(t, IsKind(err, KindRegistration))
	assert.Contains(t, err.Error(), "wsvc.Run error")
	assert.Equal(t, 1, stopCalled)
}
