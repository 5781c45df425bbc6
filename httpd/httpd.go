// Package httpd serves a read-mostly JSON view of the inbox, handy for
// test suites that just want to peek at what arrived without speaking
// IMAP.
package httpd

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"

	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/mailbox"
)

// Summary is one row of the message list.
type Summary struct {
	SeqNum  uint32   `json:"seq"`
	UID     uint32   `json:"uid"`
	Flags   []string `json:"flags"`
	Date    string   `json:"date"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Subject string   `json:"subject"`
}

type handler struct {
	inbox *mailbox.Mailbox
	log   lib.Logger
}

// NewHandler routes:
//
//	GET /               message list as JSON
//	DELETE /            empty the inbox
//	GET /messages/{uid} raw message source
func NewHandler(inbox *mailbox.Mailbox, logger lib.Logger) http.Handler {
	if logger == nil {
		logger = &lib.NoLog{}
	}
	h := &handler{
		inbox: inbox,
		log:   logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.index)
	mux.HandleFunc("/messages/", h.message)
	return mux
}

// NewServer assembles the HTTP server around the inbox.
func NewServer(inbox *mailbox.Mailbox, listen string, logger lib.Logger) *http.Server {
	return &http.Server{
		Addr:         listen,
		Handler:      NewHandler(inbox, logger),
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodDelete:
		h.clear(w)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *handler) list(w http.ResponseWriter) {
	summaries := make([]Summary, 0)
	for index, msg := range h.inbox.Messages() {
		headers := msg.Headers(false, "from", "to", "subject")
		summaries = append(summaries, Summary{
			SeqNum:  uint32(index + 1),
			UID:     msg.UID(),
			Flags:   msg.Flags(),
			Date:    msg.InternalDate().Format(time.RFC3339),
			From:    headers["from"],
			To:      headers["to"],
			Subject: headers["subject"],
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		h.log.Printf("cannot encode message list: %v", err)
	}
}

// clear deletes everything through the same path an IMAP client would
// use, so the mirror stays consistent.
func (h *handler) clear(w http.ResponseWriter) {
	set, err := imap.ParseSeqSet("1:*")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.inbox.Store(set, false, imap.AddFlags, []string{imap.DeletedFlag})
	removed := h.inbox.Expunge()
	h.log.Printf("inbox cleared, %d messages removed", len(removed))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) message(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rawUID := strings.TrimPrefix(r.URL.Path, "/messages/")
	uid, err := strconv.ParseUint(rawUID, 10, 32)
	if err != nil {
		http.Error(w, "invalid message identifier", http.StatusBadRequest)
		return
	}
	for _, msg := range h.inbox.Messages() {
		if msg.UID() != uint32(uid) {
			continue
		}
		w.Header().Set("Content-Type", "message/rfc822")
		if _, err := w.Write(msg.Raw()); err != nil {
			h.log.Printf("cannot write message %d: %v", uid, err)
		}
		return
	}
	http.NotFound(w, r)
}
