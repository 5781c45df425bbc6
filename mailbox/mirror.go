package mailbox

// Mirror is an optional durable copy of the inbox, written through on every
// change. It is a side-effect sink only: the in-memory state stays
// authoritative and a failing mirror never fails the mailbox operation.
type Mirror interface {
	// Append writes a newly delivered message to the mirror.
	Append(msg *Message) error
	// Rewrite replaces the whole mirror content after an expunge.
	Rewrite(msgs []*Message) error
	Close() error
}
