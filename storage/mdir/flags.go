package mdir

import (
	"github.com/emersion/go-imap"
	"github.com/emersion/go-maildir"
)

var flagMap = map[string]maildir.Flag{
	imap.SeenFlag:     maildir.FlagSeen,
	imap.AnsweredFlag: maildir.FlagReplied,
	imap.FlaggedFlag:  maildir.FlagFlagged,
	imap.DeletedFlag:  maildir.FlagTrashed,
	imap.DraftFlag:    maildir.FlagDraft,
}

// toFlags drops everything maildir cannot represent, \Recent included.
func toFlags(source []string) []maildir.Flag {
	flags := make([]maildir.Flag, 0, len(source))
	for _, name := range source {
		if flag, ok := flagMap[name]; ok {
			flags = append(flags, flag)
		}
	}
	return flags
}
