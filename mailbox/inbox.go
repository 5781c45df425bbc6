package mailbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-imap"

	"github.com/localmail/localmail/lib"
)

const (
	// Name of the one and only mailbox.
	Name = "INBOX"
	// Delimiter used to construct a path of mailboxes with its children.
	// There is a single mailbox here, the value is protocol decoration.
	Delimiter = "."
)

// SeqMessage associates a message with its sequence number at resolution
// time. Sequence numbers are positional and shift on expunge, so a
// SeqMessage is only meaningful as part of the snapshot it was returned in.
type SeqMessage struct {
	SeqNum  uint32
	Message *Message
}

// Listener is a change-notification subscriber, told about every delivery
// after the mailbox state is settled. NewMessages runs on the delivering
// connection, outside the mailbox lock, so it may query the mailbox; it
// should still hand off without blocking.
type Listener interface {
	NewMessages(exists, recent int)
}

// Mailbox is the in-memory inbox every delivered message lands in. It lives
// for the whole process: messages are appended by SMTP deliveries, mutated
// (flags only) and removed by IMAP commands, all under one lock because the
// callers run on independent client connections.
type Mailbox struct {
	mutex       sync.Mutex
	sequence    lib.Sequence
	uidValidity uint32
	messages    []*Message
	listeners   []Listener
	mirror      Mirror
	log         lib.Logger
}

type Options struct {
	// Sequence allocating message UIDs. Defaults to a fresh lib.UIDSequence;
	// tests inject their own to get deterministic values.
	Sequence lib.Sequence
	// Mirror is an optional write-through disk copy.
	Mirror Mirror
	// DebugLogger receives mirror failures and delivery traces.
	DebugLogger lib.Logger
}

func New(options Options) *Mailbox {
	sequence := options.Sequence
	if sequence == nil {
		sequence = lib.NewUIDSequence()
	}
	log := options.DebugLogger
	if log == nil {
		log = &lib.NoLog{}
	}
	return &Mailbox{
		sequence:    sequence,
		uidValidity: lib.NewUIDValidity(),
		messages:    make([]*Message, 0),
		mirror:      options.Mirror,
		log:         log,
	}
}

// Append parses a raw mail document and adds it to the inbox. Flags default
// to none and the internal date to the current time. A parse failure
// rejects the delivery: no UID is burned and the mailbox is unchanged.
// The mirror write is best-effort and only logged on failure.
func (m *Mailbox) Append(raw []byte, flags []string, date time.Time) (*Message, error) {
	part, err := ReadPart(raw)
	if err != nil {
		return nil, fmt.Errorf("rejected delivery: %w", err)
	}
	if date.IsZero() {
		date = time.Now()
	}

	m.mutex.Lock()
	msg := newMessage(part, m.sequence.Next(), flags, date)
	m.messages = append(m.messages, msg)
	m.log.Printf("accepted delivery %s", msg)

	if m.mirror != nil {
		if err := m.mirror.Append(msg); err != nil {
			m.log.Printf("cannot mirror message %d: %v", msg.uid, err)
		}
	}
	exists := len(m.messages)
	recent := m.recentCount()
	listeners := append([]Listener{}, m.listeners...)
	m.mutex.Unlock()

	// notify outside the lock: the delivery itself stays synchronous but the
	// hand-off is not part of it, and a listener is free to query the mailbox
	for _, listener := range listeners {
		listener.NewMessages(exists, recent)
	}
	return msg, nil
}

// ResolveSet maps a message set onto the inbox and returns a snapshot of
// {current sequence number -> message}, in ascending sequence order.
//
// With sequence addressing the "*" wildcard means the current message
// count. With UID addressing it means the last UID issued by the allocator,
// even when that message is already gone, so a client asking for
// "everything up to the newest" cannot miss a concurrent delivery.
// Requested numbers not present are silently dropped, never an error.
func (m *Mailbox) ResolveSet(set *imap.SeqSet, byUID bool) []SeqMessage {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.resolveSet(set, byUID)
}

func (m *Mailbox) resolveSet(set *imap.SeqSet, byUID bool) []SeqMessage {
	if set == nil || len(m.messages) == 0 {
		return nil
	}
	last := uint32(len(m.messages))
	if byUID {
		last = m.sequence.Last()
	}
	resolved := resolveDynamic(set, last)

	output := make([]SeqMessage, 0, len(m.messages))
	for index, msg := range m.messages {
		seqNum := uint32(index + 1)
		id := seqNum
		if byUID {
			id = msg.uid
		}
		if !resolved.Contains(id) {
			continue
		}
		output = append(output, SeqMessage{SeqNum: seqNum, Message: msg})
	}
	return output
}

// resolveDynamic returns a copy of the set with the "*" wildcard pinned to
// the given value. The caller's set is never modified.
func resolveDynamic(set *imap.SeqSet, last uint32) imap.SeqSet {
	output := imap.SeqSet{}
	for _, seq := range set.Set {
		start, stop := seq.Start, seq.Stop
		if start == 0 {
			start = last
		}
		if stop == 0 {
			stop = last
		}
		output.AddRange(start, stop)
	}
	return output
}

// Store applies a flag mutation to every message addressed by the set and
// returns the post-mutation flag lists, keyed by sequence number at
// resolution time. The flag vocabulary is not validated: extension flags
// pass through verbatim.
func (m *Mailbox) Store(set *imap.SeqSet, byUID bool, op imap.FlagsOp, flags []string) map[uint32][]string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	result := make(map[uint32][]string)
	for _, entry := range m.resolveSet(set, byUID) {
		entry.Message.setFlags(lib.UpdateFlags(entry.Message.Flags(), op, flags))
		result[entry.SeqNum] = entry.Message.Flags()
	}
	return result
}

// Expunge removes every message flagged \Deleted and returns their UIDs in
// arrival order. Removal is by identity, not position, so a multi-message
// expunge is immune to index shifting. This is the only operation that
// destroys messages.
func (m *Mailbox) Expunge() []uint32 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	removed := make([]uint32, 0)
	kept := make([]*Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if lib.HasFlag(msg.flags, imap.DeletedFlag) {
			removed = append(removed, msg.uid)
			continue
		}
		kept = append(kept, msg)
	}
	if len(removed) == 0 {
		return removed
	}
	m.messages = kept

	if m.mirror != nil {
		if err := m.mirror.Rewrite(append([]*Message{}, kept...)); err != nil {
			m.log.Printf("cannot rewrite mirror: %v", err)
		}
	}
	return removed
}

func (m *Mailbox) MessageCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.messages)
}

func (m *Mailbox) RecentCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.recentCount()
}

func (m *Mailbox) recentCount() int {
	count := 0
	for _, msg := range m.messages {
		if lib.HasFlag(msg.flags, imap.RecentFlag) {
			count++
		}
	}
	return count
}

// UnseenCount is the number of messages not carrying \Seen.
func (m *Mailbox) UnseenCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.unseenCount()
}

func (m *Mailbox) unseenCount() int {
	count := 0
	for _, msg := range m.messages {
		if !lib.HasFlag(msg.flags, imap.SeenFlag) {
			count++
		}
	}
	return count
}

// UID returns the unique identifier of the message at the given 1-based
// sequence position.
func (m *Mailbox) UID(seqNum uint32) (uint32, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if seqNum < 1 || seqNum > uint32(len(m.messages)) {
		return 0, lib.ErrNoSuchMessage
	}
	return m.messages[seqNum-1].uid, nil
}

// UIDNext is always one past the last UID the allocator issued, so it keeps
// growing across expunges.
func (m *Mailbox) UIDNext() uint32 {
	return m.sequence.Last() + 1
}

func (m *Mailbox) UIDValidity() uint32 {
	return m.uidValidity
}

// Flags is the advertised flag vocabulary.
func (m *Mailbox) Flags() []string {
	return lib.SupportedFlags()
}

func (m *Mailbox) IsWriteable() bool {
	return true
}

// Messages returns a snapshot of the current message list in arrival order.
func (m *Mailbox) Messages() []*Message {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]*Message{}, m.messages...)
}

// Status fills in the requested status items, the generic helper behind
// STATUS, SELECT and EXAMINE responses.
func (m *Mailbox) Status(items []imap.StatusItem) (*imap.MailboxStatus, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	status := imap.NewMailboxStatus(Name, items)
	status.Flags = lib.SupportedFlags()
	status.PermanentFlags = []string{"\\*"}
	status.UnseenSeqNum = m.unseenSeqNum()

	for _, item := range items {
		switch item {
		case imap.StatusMessages:
			status.Messages = uint32(len(m.messages))
		case imap.StatusUidNext:
			status.UidNext = m.sequence.Last() + 1
		case imap.StatusUidValidity:
			status.UidValidity = m.uidValidity
		case imap.StatusRecent:
			status.Recent = uint32(m.recentCount())
		case imap.StatusUnseen:
			status.Unseen = uint32(m.unseenCount())
		default:
			return nil, fmt.Errorf("unknown status item %q", item)
		}
	}
	return status, nil
}

func (m *Mailbox) unseenSeqNum() uint32 {
	for index, msg := range m.messages {
		if !lib.HasFlag(msg.flags, imap.SeenFlag) {
			return uint32(index + 1)
		}
	}
	return 0
}

// AddListener registers a change-notification subscriber.
func (m *Mailbox) AddListener(listener Listener) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *Mailbox) RemoveListener(listener Listener) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for index, registered := range m.listeners {
		if registered == listener {
			m.listeners = append(m.listeners[:index], m.listeners[index+1:]...)
			return
		}
	}
}

// Listeners returns the currently registered subscribers.
func (m *Mailbox) Listeners() []Listener {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]Listener{}, m.listeners...)
}

// Destroy always fails: this inbox cannot be removed while the process runs.
func (m *Mailbox) Destroy() error {
	return lib.ErrPermissionDenied
}
