package mdir

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/emersion/go-maildir"

	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/mailbox"
)

// Mirror keeps a maildir copy of the inbox, one file per message.
type Mirror struct {
	mutex sync.Mutex
	dir   maildir.Dir
	keys  map[uint32]string
	log   lib.Logger
}

func New(root string) (*Mirror, error) {
	return NewWithLogger(root, nil)
}

func NewWithLogger(root string, logger lib.Logger) (*Mirror, error) {
	if runtime.GOOS == "windows" {
		return nil, errors.New("maildir is not supported on Windows")
	}
	if logger == nil {
		logger = &lib.NoLog{}
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, err
	}
	dir := maildir.Dir(root)
	if err := dir.Init(); err != nil {
		return nil, fmt.Errorf("cannot initialize maildir %q: %w", root, err)
	}
	logger.Printf("mirroring the inbox to maildir %s", root)
	return &Mirror{
		dir:  dir,
		keys: make(map[uint32]string),
		log:  logger,
	}, nil
}

func (m *Mirror) Root() string {
	return string(m.dir)
}

func (m *Mirror) Append(msg *mailbox.Message) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key, writer, err := m.dir.Create(toFlags(msg.Flags()))
	if err != nil {
		return fmt.Errorf("cannot create maildir entry: %w", err)
	}
	defer writer.Close()
	if _, err = writer.Write(msg.Raw()); err != nil {
		return fmt.Errorf("cannot write maildir entry: %w", err)
	}
	m.keys[msg.UID()] = key
	return nil
}

// Rewrite drops every mirrored entry whose message is no longer part of the
// mailbox. Removal goes by key, the same way the entries were created.
func (m *Mirror) Rewrite(msgs []*mailbox.Message) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	kept := make(map[uint32]bool, len(msgs))
	for _, msg := range msgs {
		kept[msg.UID()] = true
	}

	for uid, key := range m.keys {
		if kept[uid] {
			continue
		}
		err := m.dir.Remove(key)
		if err != nil && !os.IsNotExist(err) {
			if _, ok := err.(*maildir.KeyError); !ok {
				return fmt.Errorf("cannot remove maildir entry %q: %w", key, err)
			}
		}
		delete(m.keys, uid)
	}
	return nil
}

func (m *Mirror) Close() error {
	return nil
}
