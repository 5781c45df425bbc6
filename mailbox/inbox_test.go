package mailbox

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmail/localmail/lib"
)

func testMessage(n int) []byte {
	return []byte(fmt.Sprintf(
		"From: from%d@example.com\r\n"+
			"To: to%d@example.com\r\n"+
			"Subject: test %d\r\n"+
			"\r\n"+
			"test %d\r\n", n, n, n, n))
}

func mustAppend(t *testing.T, mbox *Mailbox, n int) *Message {
	t.Helper()
	msg, err := mbox.Append(testMessage(n), nil, time.Time{})
	require.NoError(t, err)
	return msg
}

func mustParseSet(t *testing.T, set string) *imap.SeqSet {
	t.Helper()
	parsed, err := imap.ParseSeqSet(set)
	require.NoError(t, err)
	return parsed
}

func uidSet(uid uint32) *imap.SeqSet {
	set := new(imap.SeqSet)
	set.AddNum(uid)
	return set
}

func TestUIDsAreStrictlyIncreasing(t *testing.T) {
	mbox := New(Options{DebugLogger: lib.NewTestLogger(t, "mailbox")})

	seen := make(map[uint32]bool)
	previous := uint32(0)
	for i := 1; i <= 5; i++ {
		msg := mustAppend(t, mbox, i)
		require.Greater(t, msg.UID(), previous)
		require.False(t, seen[msg.UID()])
		seen[msg.UID()] = true
		previous = msg.UID()
	}

	// expunging must not cause any UID reuse
	mbox.Store(mustParseSet(t, "1:*"), false, imap.AddFlags, []string{imap.DeletedFlag})
	mbox.Expunge()

	msg := mustAppend(t, mbox, 6)
	assert.Greater(t, msg.UID(), previous)
	assert.False(t, seen[msg.UID()])
}

func TestResolveSequenceSet(t *testing.T) {
	mbox := New(Options{})
	msgA := mustAppend(t, mbox, 1)
	msgB := mustAppend(t, mbox, 2)

	resolved := mbox.ResolveSet(mustParseSet(t, "1:*"), false)
	require.Len(t, resolved, 2)
	assert.Equal(t, uint32(1), resolved[0].SeqNum)
	assert.Same(t, msgA, resolved[0].Message)
	assert.Equal(t, uint32(2), resolved[1].SeqNum)
	assert.Same(t, msgB, resolved[1].Message)

	// delete A: B shifts to sequence number 1
	mbox.Store(mustParseSet(t, "1"), false, imap.AddFlags, []string{imap.DeletedFlag})
	removed := mbox.Expunge()
	assert.Equal(t, []uint32{msgA.UID()}, removed)

	resolved = mbox.ResolveSet(mustParseSet(t, "1:*"), false)
	require.Len(t, resolved, 1)
	assert.Equal(t, uint32(1), resolved[0].SeqNum)
	assert.Same(t, msgB, resolved[0].Message)
}

func TestResolveSequenceWildcardAlwaysIncludesLastMessage(t *testing.T) {
	mbox := New(Options{})
	for i := 1; i <= 3; i++ {
		mustAppend(t, mbox, i)
	}
	mbox.Store(mustParseSet(t, "2"), false, imap.AddFlags, []string{imap.DeletedFlag})
	mbox.Expunge()

	resolved := mbox.ResolveSet(mustParseSet(t, "*"), false)
	require.Len(t, resolved, 1)
	assert.Equal(t, uint32(2), resolved[0].SeqNum)
	assert.Equal(t, uint32(3), resolved[0].Message.UID())
}

func TestResolveUIDWildcardUsesLastAllocated(t *testing.T) {
	mbox := New(Options{})
	msgA := mustAppend(t, mbox, 1)
	msgB := mustAppend(t, mbox, 2)

	// expunge the newest message
	mbox.Store(uidSet(msgB.UID()), true, imap.AddFlags, []string{imap.DeletedFlag})
	removed := mbox.Expunge()
	require.Equal(t, []uint32{msgB.UID()}, removed)

	// "*" still points at the allocator's last issued UID, which is gone:
	// the request quietly matches nothing
	resolved := mbox.ResolveSet(mustParseSet(t, "*"), true)
	assert.Empty(t, resolved)

	// but a range up to "*" still covers the survivors
	resolved = mbox.ResolveSet(mustParseSet(t, "1:*"), true)
	require.Len(t, resolved, 1)
	assert.Same(t, msgA, resolved[0].Message)
}

func TestResolveOutOfRangeIsSilentlyDropped(t *testing.T) {
	mbox := New(Options{})
	mustAppend(t, mbox, 1)

	assert.Empty(t, mbox.ResolveSet(mustParseSet(t, "10:20"), false))
	assert.Empty(t, mbox.ResolveSet(mustParseSet(t, "5"), true))

	// a partially out-of-range set keeps its valid members
	resolved := mbox.ResolveSet(mustParseSet(t, "1,10"), false)
	require.Len(t, resolved, 1)
	assert.Equal(t, uint32(1), resolved[0].SeqNum)
}

func TestResolveOnEmptyMailbox(t *testing.T) {
	mbox := New(Options{})
	assert.Empty(t, mbox.ResolveSet(mustParseSet(t, "1:*"), false))
	assert.Empty(t, mbox.ResolveSet(mustParseSet(t, "*"), true))
}

func TestStoreReplaceSetsExactFlags(t *testing.T) {
	mbox := New(Options{})
	msg, err := mbox.Append(testMessage(1), []string{imap.RecentFlag}, time.Time{})
	require.NoError(t, err)

	result := mbox.Store(mustParseSet(t, "1"), false, imap.SetFlags, []string{imap.SeenFlag, imap.FlaggedFlag})
	require.Contains(t, result, uint32(1))
	assert.Equal(t, []string{imap.SeenFlag, imap.FlaggedFlag}, result[1])
	assert.Equal(t, []string{imap.SeenFlag, imap.FlaggedFlag}, msg.Flags())
}

func TestStoreAddThenRemoveRestoresFlags(t *testing.T) {
	mbox := New(Options{})
	msg, err := mbox.Append(testMessage(1), []string{imap.SeenFlag}, time.Time{})
	require.NoError(t, err)
	before := msg.Flags()

	toggled := []string{imap.DeletedFlag, "$Forwarded"}
	result := mbox.Store(mustParseSet(t, "1"), false, imap.AddFlags, toggled)
	assert.Equal(t, []string{imap.SeenFlag, imap.DeletedFlag, "$Forwarded"}, result[1])

	result = mbox.Store(mustParseSet(t, "1"), false, imap.RemoveFlags, toggled)
	assert.Equal(t, before, result[1])
	assert.Equal(t, before, msg.Flags())
}

func TestStoreIsKeyedBySequenceNumberAtResolutionTime(t *testing.T) {
	mbox := New(Options{})
	mustAppend(t, mbox, 1)
	msgB := mustAppend(t, mbox, 2)
	mustAppend(t, mbox, 3)

	result := mbox.Store(uidSet(msgB.UID()), true, imap.AddFlags, []string{imap.SeenFlag})
	require.Len(t, result, 1)
	assert.Contains(t, result, uint32(2))
}

func TestExpungeRemovesDeletedInArrivalOrder(t *testing.T) {
	mbox := New(Options{})
	msgs := make([]*Message, 0, 4)
	for i := 1; i <= 4; i++ {
		msgs = append(msgs, mustAppend(t, mbox, i))
	}

	// flag 1 and 3 in reverse order: removal order is arrival order anyway
	mbox.Store(uidSet(msgs[2].UID()), true, imap.AddFlags, []string{imap.DeletedFlag})
	mbox.Store(uidSet(msgs[0].UID()), true, imap.AddFlags, []string{imap.DeletedFlag})

	removed := mbox.Expunge()
	assert.Equal(t, []uint32{msgs[0].UID(), msgs[2].UID()}, removed)
	assert.Equal(t, 2, mbox.MessageCount())

	// second call with no new deletions returns empty
	assert.Empty(t, mbox.Expunge())
}

func TestUIDNextSurvivesExpunge(t *testing.T) {
	mbox := New(Options{})
	mustAppend(t, mbox, 1)
	mustAppend(t, mbox, 2)
	require.Equal(t, uint32(3), mbox.UIDNext())

	mbox.Store(mustParseSet(t, "1:*"), false, imap.AddFlags, []string{imap.DeletedFlag})
	mbox.Expunge()
	require.Equal(t, 0, mbox.MessageCount())
	assert.Equal(t, uint32(3), mbox.UIDNext())

	msg := mustAppend(t, mbox, 3)
	assert.Equal(t, uint32(3), msg.UID())
}

func TestRejectedDeliveryLeavesMailboxUnchanged(t *testing.T) {
	mbox := New(Options{})

	_, err := mbox.Append([]byte("this is not a mail header\r\n\r\nbody\r\n"), nil, time.Time{})
	require.Error(t, err)
	assert.Equal(t, 0, mbox.MessageCount())

	// the failed parse did not burn a UID
	msg := mustAppend(t, mbox, 1)
	assert.Equal(t, uint32(1), msg.UID())
}

func TestBodyRoundTripIsByteExact(t *testing.T) {
	payload := []byte{0x00, 0xff, 0xfe, '£', 0x0d, 0x0a, 0x80, 'a', 0xc3}
	raw := append([]byte(
		"From: from@example.com\r\n"+
			"To: to@example.com\r\n"+
			"Content-Type: application/octet-stream\r\n"+
			"\r\n"), payload...)

	mbox := New(Options{})
	msg, err := mbox.Append(raw, nil, time.Time{})
	require.NoError(t, err)

	body, err := msg.Body()
	require.NoError(t, err)
	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, content)
}

func TestStatusQueries(t *testing.T) {
	mbox := New(Options{})
	_, err := mbox.Append(testMessage(1), []string{imap.SeenFlag}, time.Time{})
	require.NoError(t, err)
	_, err = mbox.Append(testMessage(2), []string{imap.RecentFlag}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 2, mbox.MessageCount())
	assert.Equal(t, 1, mbox.RecentCount())
	assert.Equal(t, 1, mbox.UnseenCount())
	assert.True(t, mbox.IsWriteable())
	assert.NotZero(t, mbox.UIDValidity())
	assert.Equal(t, lib.SupportedFlags(), mbox.Flags())

	uid, err := mbox.UID(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), uid)

	_, err = mbox.UID(3)
	assert.ErrorIs(t, err, lib.ErrNoSuchMessage)

	status, err := mbox.Status([]imap.StatusItem{
		imap.StatusMessages, imap.StatusUidNext, imap.StatusUidValidity,
		imap.StatusRecent, imap.StatusUnseen,
	})
	require.NoError(t, err)
	assert.Equal(t, Name, status.Name)
	assert.Equal(t, uint32(2), status.Messages)
	assert.Equal(t, uint32(3), status.UidNext)
	assert.Equal(t, mbox.UIDValidity(), status.UidValidity)
	assert.Equal(t, uint32(1), status.Recent)
	assert.Equal(t, uint32(1), status.Unseen)
	assert.Equal(t, uint32(2), status.UnseenSeqNum)
}

func TestInternalDateDefaultsToNow(t *testing.T) {
	mbox := New(Options{})
	before := time.Now()
	msg := mustAppend(t, mbox, 1)
	after := time.Now()

	assert.False(t, msg.InternalDate().Before(before))
	assert.False(t, msg.InternalDate().After(after))

	date := time.Date(2012, 6, 1, 10, 0, 0, 0, time.UTC)
	msg, err := mbox.Append(testMessage(2), nil, date)
	require.NoError(t, err)
	assert.Equal(t, date, msg.InternalDate())
}

func TestDestroyIsAlwaysDenied(t *testing.T) {
	mbox := New(Options{})
	assert.ErrorIs(t, mbox.Destroy(), lib.ErrPermissionDenied)
}

type testListener struct {
	name   string
	exists []int
	recent []int
}

func (l *testListener) NewMessages(exists, recent int) {
	l.exists = append(l.exists, exists)
	l.recent = append(l.recent, recent)
}

func TestListenerRegistration(t *testing.T) {
	mbox := New(Options{})
	first := &testListener{name: "first"}
	second := &testListener{name: "second"}

	mbox.AddListener(first)
	mbox.AddListener(second)
	require.Len(t, mbox.Listeners(), 2)

	mbox.RemoveListener(first)
	listeners := mbox.Listeners()
	require.Len(t, listeners, 1)
	assert.Same(t, second, listeners[0].(*testListener))
}

func TestSnapshotFlagReadsDuringConcurrentStores(t *testing.T) {
	mbox := New(Options{})
	msg := mustAppend(t, mbox, 1)
	set := uidSet(msg.UID())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			mbox.Store(set, true, imap.AddFlags, []string{imap.FlaggedFlag})
			mbox.Store(set, true, imap.RemoveFlags, []string{imap.FlaggedFlag})
		}
	}()
	// read from the snapshot while the flags churn on the other side
	snapshot := mbox.Messages()[0]
	for i := 0; i < 500; i++ {
		_ = snapshot.Flags()
	}
	<-done
	assert.NotContains(t, snapshot.Flags(), imap.FlaggedFlag)
}

func TestListenersHearAboutEveryDelivery(t *testing.T) {
	mbox := New(Options{})
	listener := &testListener{}
	mbox.AddListener(listener)

	mustAppend(t, mbox, 1)
	_, err := mbox.Append(testMessage(2), []string{imap.RecentFlag}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, listener.exists)
	assert.Equal(t, []int{0, 1}, listener.recent)
}

// a listener querying the mailbox from inside the notification
type queryingListener struct {
	mbox   *Mailbox
	counts []int
}

func (l *queryingListener) NewMessages(exists, recent int) {
	l.counts = append(l.counts, l.mbox.MessageCount())
}

func TestListenerMayQueryTheMailbox(t *testing.T) {
	mbox := New(Options{})
	listener := &queryingListener{mbox: mbox}
	mbox.AddListener(listener)

	mustAppend(t, mbox, 1)
	mustAppend(t, mbox, 2)

	assert.Equal(t, []int{1, 2}, listener.counts)
}
