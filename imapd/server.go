package imapd

import (
	compress "github.com/emersion/go-imap-compress"
	"github.com/emersion/go-imap/server"

	"github.com/localmail/localmail/cfg"
	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/mailbox"
)

// NewServer assembles a ready-to-serve IMAP server around the inbox.
// Plain text logins are fine here, nothing this server holds is secret.
func NewServer(inbox *mailbox.Mailbox, config cfg.IMAP, logger lib.Logger) *server.Server {
	s := server.New(NewBackend(inbox, logger))
	s.Addr = config.Listen
	s.AllowInsecureAuth = true
	s.Enable(compress.NewExtension())
	return s
}
