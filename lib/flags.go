package lib

import "github.com/emersion/go-imap"

// UnseenFlag is not a standard IMAP system flag, but it has always been
// advertised here and clients relying on it still exist.
const UnseenFlag = "\\Unseen"

// SupportedFlags is the vocabulary advertised by the mailbox. The store
// operation does not validate against it: extension flags pass through
// verbatim.
func SupportedFlags() []string {
	return []string{
		imap.SeenFlag,
		UnseenFlag,
		imap.DeletedFlag,
		imap.FlaggedFlag,
		imap.AnsweredFlag,
		imap.RecentFlag,
	}
}

func HasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlags appends every flag not already present.
func AddFlags(current []string, flags []string) []string {
	for _, flag := range flags {
		if !HasFlag(current, flag) {
			current = append(current, flag)
		}
	}
	return current
}

// RemoveFlags returns a new list without the given flags, and is a no-op
// for flags not present. The input list is left alone.
func RemoveFlags(current []string, flags []string) []string {
	output := make([]string, 0, len(current))
	for _, flag := range current {
		if !HasFlag(flags, flag) {
			output = append(output, flag)
		}
	}
	return output
}

// UpdateFlags applies an IMAP STORE operation to a flag list. SetFlags
// replaces the list with exactly the flags given, with no special case for
// \Recent.
func UpdateFlags(current []string, op imap.FlagsOp, flags []string) []string {
	switch op {
	case imap.SetFlags:
		return append([]string{}, flags...)
	case imap.AddFlags:
		return AddFlags(current, flags)
	case imap.RemoveFlags:
		return RemoveFlags(current, flags)
	}
	return current
}
