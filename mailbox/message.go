package mailbox

import (
	"fmt"
	"sync"
	"time"
)

// Message is a Part with mailbox identity attached: a unique identifier
// assigned once at delivery, a mutable flag list and the date it arrived.
// Flags are only ever changed by Mailbox.Store, under the mailbox lock; the
// message keeps its own lock on top so a snapshot holder reading Flags
// stays consistent with a store running on another connection.
type Message struct {
	Part
	uid   uint32
	mutex sync.Mutex
	flags []string
	date  time.Time
}

func newMessage(part *Part, uid uint32, flags []string, date time.Time) *Message {
	if flags == nil {
		flags = []string{}
	}
	return &Message{
		Part:  *part,
		uid:   uid,
		flags: append([]string{}, flags...),
		date:  date,
	}
}

func (m *Message) UID() uint32 {
	return m.uid
}

// Flags returns a copy of the current flag list.
func (m *Message) Flags() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string{}, m.flags...)
}

// setFlags replaces the flag list. Only the mailbox store path calls it.
func (m *Message) setFlags(flags []string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.flags = flags
}

func (m *Message) InternalDate() time.Time {
	return m.date
}

func (m *Message) String() string {
	headers := m.Headers(false, "From", "To")
	return fmt.Sprintf("<From: %s, To: %s, Uid: %d>", headers["from"], headers["to"], m.uid)
}
