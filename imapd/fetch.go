package imapd

import (
	"bufio"
	"bytes"
	"io"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/backendutil"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"

	"github.com/localmail/localmail/mailbox"
)

// headerAndBody re-reads the stored raw bytes. The body reader is
// positioned right after the header so section fetches see the original
// transfer encoding untouched.
func headerAndBody(msg *mailbox.Message) (textproto.Header, io.Reader, error) {
	body := bufio.NewReader(bytes.NewReader(msg.Raw()))
	header, err := textproto.ReadHeader(body)
	return header, body, err
}

func fetchMessage(msg *mailbox.Message, seqNum uint32, items []imap.FetchItem) (*imap.Message, error) {
	fetched := imap.NewMessage(seqNum, items)
	for _, item := range items {
		switch item {
		case imap.FetchEnvelope:
			header, _, err := headerAndBody(msg)
			if err != nil {
				return nil, err
			}
			fetched.Envelope, err = backendutil.FetchEnvelope(header)
			if err != nil {
				return nil, err
			}
		case imap.FetchBody, imap.FetchBodyStructure:
			header, body, err := headerAndBody(msg)
			if err != nil {
				return nil, err
			}
			fetched.BodyStructure, err = backendutil.FetchBodyStructure(header, body, item == imap.FetchBodyStructure)
			if err != nil {
				return nil, err
			}
		case imap.FetchFlags:
			fetched.Flags = msg.Flags()
		case imap.FetchInternalDate:
			fetched.InternalDate = msg.InternalDate()
		case imap.FetchRFC822Size:
			fetched.Size = uint32(msg.Size())
		case imap.FetchUid:
			fetched.Uid = msg.UID()
		default:
			section, err := imap.ParseBodySectionName(item)
			if err != nil {
				// not a section either, ignore the item
				continue
			}
			header, body, err := headerAndBody(msg)
			if err != nil {
				return nil, err
			}
			literal, err := backendutil.FetchBodySection(header, body, section)
			if err != nil {
				return nil, err
			}
			fetched.Body[section] = literal
		}
	}
	return fetched, nil
}

func matchMessage(entry mailbox.SeqMessage, criteria *imap.SearchCriteria) (bool, error) {
	msg := entry.Message
	entity, err := message.Read(bytes.NewReader(msg.Raw()))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return false, err
	}
	return backendutil.Match(entity, entry.SeqNum, msg.UID(), msg.InternalDate(), msg.Flags(), criteria)
}
