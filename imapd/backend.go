// Package imapd exposes the inbox over IMAP4rev1. Any username and
// password pair is accepted and every login lands in the same single
// INBOX, which makes test assertions trivial: whatever was sent is in
// there.
package imapd

import (
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"

	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/mailbox"
)

// verify interface
var (
	_ backend.Backend = &Backend{}
	_ backend.BackendUpdater = &Backend{}
	_ backend.User    = &User{}
)

type Backend struct {
	inbox   *mailbox.Mailbox
	updates chan backend.Update
	log     lib.Logger
}

func NewBackend(inbox *mailbox.Mailbox, logger lib.Logger) *Backend {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	b := &Backend{
		inbox:   inbox,
		updates: make(chan backend.Update, 64),
		log:     logger,
	}
	inbox.AddListener(b)
	return b
}

// Login accepts any credentials and keeps the username for display only.
func (b *Backend) Login(connInfo *imap.ConnInfo, username, password string) (backend.User, error) {
	b.log.Printf("IMAP login %q from %s", username, connInfo.RemoteAddr)
	return &User{
		backend: b,
		name:    username,
	}, nil
}

// Updates implements backend.Updater: clients with the inbox selected
// receive an unsolicited EXISTS when mail arrives.
func (b *Backend) Updates() <-chan backend.Update {
	return b.updates
}

// NewMessages runs on the delivering connection. It builds the status from
// the counters it was given and hands off without blocking: when nobody is
// draining the channel the update is dropped, not queued forever.
func (b *Backend) NewMessages(exists, recent int) {
	status := imap.NewMailboxStatus(mailbox.Name, []imap.StatusItem{imap.StatusMessages, imap.StatusRecent})
	status.Messages = uint32(exists)
	status.Recent = uint32(recent)

	update := &backend.MailboxUpdate{
		Update:        backend.NewUpdate("", mailbox.Name),
		MailboxStatus: status,
	}
	select {
	case b.updates <- update:
	default:
		b.log.Printf("dropped mailbox update (%d messages)", exists)
	}
}

type User struct {
	backend *Backend
	name    string
}

func (u *User) Username() string {
	return u.name
}

func (u *User) ListMailboxes(subscribed bool) ([]backend.Mailbox, error) {
	return []backend.Mailbox{u.inbox()}, nil
}

func (u *User) GetMailbox(name string) (backend.Mailbox, error) {
	if !strings.EqualFold(name, mailbox.Name) {
		return nil, backend.ErrNoSuchMailbox
	}
	return u.inbox(), nil
}

func (u *User) inbox() *Mailbox {
	return &Mailbox{
		backend: u.backend,
		inbox:   u.backend.inbox,
	}
}

// There is one mailbox and it is not negotiable.

func (u *User) CreateMailbox(name string) error {
	return lib.ErrPermissionDenied
}

func (u *User) DeleteMailbox(name string) error {
	return lib.ErrPermissionDenied
}

func (u *User) RenameMailbox(existingName, newName string) error {
	return lib.ErrPermissionDenied
}

func (u *User) Logout() error {
	return nil
}
