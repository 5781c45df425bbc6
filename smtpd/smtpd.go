// Package smtpd accepts mail on the wire and delivers everything into
// the single in-memory inbox. Authentication is a formality: any
// credentials are accepted, and so are anonymous sessions.
package smtpd

import (
	"io"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/localmail/localmail/cfg"
	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/limitio"
	"github.com/localmail/localmail/mailbox"
)

// verify interface
var (
	_ smtp.Backend = &Backend{}
	_ smtp.Session = &session{}
)

type Backend struct {
	inbox  *mailbox.Mailbox
	config cfg.SMTP
	log    lib.Logger
}

func NewBackend(inbox *mailbox.Mailbox, config cfg.SMTP, logger lib.Logger) *Backend {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	return &Backend{
		inbox:  inbox,
		config: config,
		log:    logger,
	}
}

// Login accepts whatever credentials the client sends.
func (b *Backend) Login(state *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	b.log.Printf("SMTP login %q from %s", username, state.RemoteAddr)
	return newSession(b), nil
}

// AnonymousLogin is just as welcoming as Login.
func (b *Backend) AnonymousLogin(state *smtp.ConnectionState) (smtp.Session, error) {
	b.log.Printf("anonymous SMTP session from %s", state.RemoteAddr)
	return newSession(b), nil
}

type session struct {
	backend *Backend
	from    string
	to      []string
}

func newSession(backend *Backend) *session {
	return &session{
		backend: backend,
	}
}

func (s *session) Mail(from string, opts smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string) error {
	s.to = append(s.to, to)
	return nil
}

// Data stores the message in the inbox. The envelope is deliberately
// ignored: every recipient lands in the same place.
func (s *session) Data(reader io.Reader) error {
	if limit := s.backend.config.BandwidthLimit; limit > 0 {
		reader = limitio.NewReader(reader, limit, 0)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	message, err := s.backend.inbox.Append(raw, nil, time.Now())
	if err != nil {
		s.backend.log.Printf("cannot store message from %q: %v", s.from, err)
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "message refused: unparseable content",
		}
	}
	s.backend.log.Printf("message %d stored (from %q to %q)", message.UID(), s.from, s.to)
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

// NewServer assembles a ready-to-serve SMTP server around the inbox.
func NewServer(inbox *mailbox.Mailbox, config cfg.SMTP, logger lib.Logger) *smtp.Server {
	server := smtp.NewServer(NewBackend(inbox, config, logger))
	server.Addr = config.Listen
	server.Domain = config.Domain
	server.AllowInsecureAuth = true
	server.ReadTimeout = 2 * time.Minute
	server.WriteTimeout = 2 * time.Minute
	if config.MaxMessageSize > 0 {
		server.MaxMessageBytes = int(config.MaxMessageSize)
	}
	return server
}
