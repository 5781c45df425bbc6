package imapd

import (
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"

	"github.com/localmail/localmail/mailbox"
)

// verify interface
var _ backend.Mailbox = &Mailbox{}

// Mailbox adapts the shared inbox to the protocol surface. It carries no
// state of its own: every connection gets its own adapter over the same
// underlying store.
type Mailbox struct {
	backend *Backend
	inbox   *mailbox.Mailbox
}

func (m *Mailbox) Name() string {
	return mailbox.Name
}

func (m *Mailbox) Info() (*imap.MailboxInfo, error) {
	return &imap.MailboxInfo{
		Delimiter: mailbox.Delimiter,
		Name:      mailbox.Name,
	}, nil
}

func (m *Mailbox) Status(items []imap.StatusItem) (*imap.MailboxStatus, error) {
	return m.inbox.Status(items)
}

func (m *Mailbox) SetSubscribed(subscribed bool) error {
	return nil
}

func (m *Mailbox) Check() error {
	return nil
}

// ListMessages resolves the set against the current state of the inbox.
// A message that cannot be fetched is logged and skipped, it never fails
// the whole command.
func (m *Mailbox) ListMessages(uid bool, seqSet *imap.SeqSet, items []imap.FetchItem, ch chan<- *imap.Message) error {
	defer close(ch)
	for _, entry := range m.inbox.ResolveSet(seqSet, uid) {
		fetched, err := fetchMessage(entry.Message, entry.SeqNum, items)
		if err != nil {
			m.backend.log.Printf("cannot fetch message %d: %v", entry.Message.UID(), err)
			continue
		}
		ch <- fetched
	}
	return nil
}

func (m *Mailbox) SearchMessages(uid bool, criteria *imap.SearchCriteria) ([]uint32, error) {
	everything, err := imap.ParseSeqSet("1:*")
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0)
	for _, entry := range m.inbox.ResolveSet(everything, false) {
		ok, err := matchMessage(entry, criteria)
		if err != nil {
			m.backend.log.Printf("cannot match message %d: %v", entry.Message.UID(), err)
			continue
		}
		if !ok {
			continue
		}
		if uid {
			ids = append(ids, entry.Message.UID())
		} else {
			ids = append(ids, entry.SeqNum)
		}
	}
	return ids, nil
}

func (m *Mailbox) CreateMessage(flags []string, date time.Time, body imap.Literal) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	_, err = m.inbox.Append(raw, flags, date)
	return err
}

func (m *Mailbox) UpdateMessagesFlags(uid bool, seqSet *imap.SeqSet, op imap.FlagsOp, flags []string) error {
	m.inbox.Store(seqSet, uid, op, flags)
	return nil
}

// CopyMessages appends the selected messages back onto the inbox: with a
// single mailbox the only valid destination is the source.
func (m *Mailbox) CopyMessages(uid bool, seqSet *imap.SeqSet, dest string) error {
	if !strings.EqualFold(dest, mailbox.Name) {
		return backend.ErrNoSuchMailbox
	}
	for _, entry := range m.inbox.ResolveSet(seqSet, uid) {
		source := entry.Message
		_, err := m.inbox.Append(source.Raw(), source.Flags(), source.InternalDate())
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Mailbox) Expunge() error {
	removed := m.inbox.Expunge()
	if len(removed) > 0 {
		m.backend.log.Printf("expunged %d messages", len(removed))
	}
	return nil
}
