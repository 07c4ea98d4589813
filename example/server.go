package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// server writes the current time to its log file once per interval.
type server struct {
	path     string
	interval time.Duration
	log      *logrus.Entry

	out  io.WriteCloser
	data chan time.Time

	exit chan struct{}
	wg   sync.WaitGroup
}

func newServer(path string, log *logrus.Entry) *server {
	return &server{
		path:     path,
		interval: time.Second,
		log:      log,
	}
}

func (s *server) start() error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	s.out = f
	s.data = make(chan time.Time)
	s.exit = make(chan struct{})

	s.wg.Add(2)
	go s.startSender()
	go s.startReceiver()

	s.log.WithField("path", s.path).Info("Writing timestamps.")
	return nil
}

func (s *server) stop() error {
	close(s.exit)
	s.wg.Wait()
	return s.out.Close()
}

func (s *server) startSender() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case t := <-ticker.C:
			select {
			case s.data <- t:
			case <-s.exit:
				return
			}
		case <-s.exit:
			return
		}
	}
}

func (s *server) startReceiver() {
	defer s.wg.Done()

	for {
		select {
		case t := <-s.data:
			if _, err := fmt.Fprintln(s.out, t.Format(time.RFC1123Z)); err != nil {
				s.log.WithError(err).Warn("Could not write timestamp.")
			}
		case <-s.exit:
			return
		}
	}
}
