package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emersion/go-imap/server"
	"github.com/emersion/go-smtp"
	"github.com/spf13/cobra"

	"github.com/localmail/localmail/cfg"
	"github.com/localmail/localmail/httpd"
	"github.com/localmail/localmail/imapd"
	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/mailbox"
	"github.com/localmail/localmail/smtpd"
	"github.com/localmail/localmail/storage"
	"github.com/localmail/localmail/term"
)

// servers bundles the three listeners around the one inbox. Listeners are
// bound before serve starts, so ":0" configurations can report the port
// they actually got.
type servers struct {
	inbox        *mailbox.Mailbox
	mirror       mailbox.Mirror
	smtpServer   *smtp.Server
	imapServer   *server.Server
	httpServer   *http.Server
	smtpListener net.Listener
	imapListener net.Listener
	httpListener net.Listener
	errs         chan error
}

func startServers(config *cfg.Config, logger lib.Logger) (*servers, error) {
	mirror, err := storage.NewMirror(config.Mirror, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot open mirror: %w", err)
	}
	inbox := mailbox.New(mailbox.Options{
		Mirror:      mirror,
		DebugLogger: logger,
	})

	s := &servers{
		inbox:      inbox,
		mirror:     mirror,
		smtpServer: smtpd.NewServer(inbox, config.SMTP, logger),
		imapServer: imapd.NewServer(inbox, config.IMAP, logger),
		httpServer: httpd.NewServer(inbox, config.HTTP.Listen, logger),
		errs:       make(chan error, 3),
	}

	s.smtpListener, err = net.Listen("tcp", config.SMTP.Listen)
	if err != nil {
		return nil, fmt.Errorf("cannot listen for SMTP: %w", err)
	}
	s.imapListener, err = net.Listen("tcp", config.IMAP.Listen)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("cannot listen for IMAP: %w", err)
	}
	s.httpListener, err = net.Listen("tcp", config.HTTP.Listen)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("cannot listen for HTTP: %w", err)
	}
	return s, nil
}

func (s *servers) serve() {
	go func() {
		s.errs <- s.smtpServer.Serve(s.smtpListener)
	}()
	go func() {
		s.errs <- s.imapServer.Serve(s.imapListener)
	}()
	go func() {
		err := s.httpServer.Serve(s.httpListener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.errs <- err
	}()
}

func (s *servers) shutdown() {
	_ = s.smtpServer.Close()
	_ = s.imapServer.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(ctx)
	s.close()
}

func (s *servers) close() {
	for _, listener := range []net.Listener{s.smtpListener, s.imapListener, s.httpListener} {
		if listener != nil {
			_ = listener.Close()
		}
	}
	if s.mirror != nil {
		_ = s.mirror.Close()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var logger lib.Logger = &lib.NoLog{}
	if global.verbose {
		logger = log.Default()
	}

	s, err := startServers(config, logger)
	if err != nil {
		return err
	}
	s.serve()
	term.Infof("SMTP server listening on %s", s.smtpListener.Addr())
	term.Infof("IMAP server listening on %s", s.imapListener.Addr())
	term.Infof("HTTP server listening on %s", s.httpListener.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-s.errs:
		s.shutdown()
		return err
	case sig := <-quit:
		term.Infof("received signal %v, shutting down", sig)
		s.shutdown()
	}
	return nil
}
