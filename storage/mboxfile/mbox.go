package mboxfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/emersion/go-mbox"

	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/mailbox"
)

// fallback sender for the mbox From line when the message has none
const defaultSender = "MAILER-DAEMON"

// Mirror keeps an append-only mbox copy of the inbox: one entry per
// delivered message, rewritten from scratch after an expunge. The file is
// never read back by the server, it only exists for the developer to poke
// at.
type Mirror struct {
	mutex    sync.Mutex
	filename string
	file     *os.File
	writer   *mbox.Writer
	log      lib.Logger
}

func New(filename string) (*Mirror, error) {
	return NewWithLogger(filename, nil)
}

func NewWithLogger(filename string, logger lib.Logger) (*Mirror, error) {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	mirror := &Mirror{
		filename: filename,
		log:      logger,
	}
	if err := mirror.open(); err != nil {
		return nil, err
	}
	logger.Printf("mirroring the inbox to mbox file %s", filename)
	return mirror, nil
}

func (m *Mirror) open() error {
	file, err := os.OpenFile(m.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("cannot open mailbox file %q: %w", m.filename, err)
	}
	m.file = file
	m.writer = mbox.NewWriter(file)
	return nil
}

func (m *Mirror) Append(msg *mailbox.Message) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.append(msg)
}

func (m *Mirror) append(msg *mailbox.Message) error {
	sender := msg.Headers(false, "From")["from"]
	if sender == "" {
		sender = defaultSender
	}
	writer, err := m.writer.CreateMessage(sender, msg.InternalDate())
	if err != nil {
		return fmt.Errorf("cannot write to mailbox file: %w", err)
	}
	if _, err = writer.Write(msg.Raw()); err != nil {
		return fmt.Errorf("cannot write to mailbox file: %w", err)
	}
	return nil
}

// Rewrite recreates the file with only the given messages. An expunge is
// rare enough on a throwaway inbox that the full rewrite does not matter.
func (m *Mirror) Rewrite(msgs []*mailbox.Message) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.close(); err != nil {
		return err
	}
	if err := os.Truncate(m.filename, 0); err != nil {
		return fmt.Errorf("cannot truncate mailbox file %q: %w", m.filename, err)
	}
	if err := m.open(); err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := m.append(msg); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.close()
}

func (m *Mirror) close() error {
	if m.writer != nil {
		_ = m.writer.Close()
		m.writer = nil
	}
	if m.file != nil {
		err := m.file.Close()
		m.file = nil
		return err
	}
	return nil
}
