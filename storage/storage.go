package storage

import (
	"fmt"

	"github.com/localmail/localmail/cfg"
	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/mailbox"
	"github.com/localmail/localmail/storage/mboxfile"
	"github.com/localmail/localmail/storage/mdir"
)

// verify interface
var (
	_ mailbox.Mirror = &mboxfile.Mirror{}
	_ mailbox.Mirror = &mdir.Mirror{}
)

// NewMirror builds the durable mirror selected by the configuration.
// Returns nil when no mirror is configured: the inbox then lives in memory
// only, which is the default.
func NewMirror(config cfg.Mirror, logger lib.Logger) (mailbox.Mirror, error) {
	switch config.Type {
	case cfg.NONE:
		return nil, nil
	case cfg.MBOX:
		return mboxfile.NewWithLogger(config.File, logger)
	case cfg.MAILDIR:
		return mdir.NewWithLogger(config.Root, logger)
	default:
		return nil, fmt.Errorf("unsupported mirror type %q", config.Type)
	}
}
