package smtpd

import (
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/localmail/localmail/cfg"
	"github.com/localmail/localmail/lib"
	"github.com/localmail/localmail/mailbox"
)

func startServer(t *testing.T, config cfg.SMTP) (*mailbox.Mailbox, string) {
	t.Helper()
	inbox := mailbox.New(mailbox.Options{DebugLogger: lib.NewTestLogger(t, "mailbox")})
	server := NewServer(inbox, config, lib.NewTestLogger(t, "smtpd"))

	listener, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(func() {
		_ = server.Close()
	})
	return inbox, listener.Addr().String()
}

func TestDeliveryLandsInTheInbox(t *testing.T) {
	inbox, addr := startServer(t, cfg.SMTP{Domain: "localhost"})

	content := []byte("From: sender@example.org\r\n" +
		"To: you@example.org\r\n" +
		"Subject: hello from the wire\r\n" +
		"\r\n" +
		"a body\r\n")
	err := smtp.SendMail(addr, nil, "sender@example.org", []string{"you@example.org"}, content)
	require.NoError(t, err)

	require.Equal(t, 1, inbox.MessageCount())
	message := inbox.Messages()[0]
	headers := message.Headers(false, "subject")
	assert.Equal(t, "hello from the wire", headers["subject"])
	assert.WithinDuration(t, time.Now(), message.InternalDate(), time.Minute)
}

func TestEveryRecipientSharesTheInbox(t *testing.T) {
	inbox, addr := startServer(t, cfg.SMTP{Domain: "localhost"})

	content := []byte("Subject: broadcast\r\n\r\nsame place for everyone\r\n")
	recipients := []string{"alice@example.org", "bob@other.example"}
	err := smtp.SendMail(addr, nil, "sender@example.org", recipients, content)
	require.NoError(t, err)

	// one message, whatever the envelope said
	assert.Equal(t, 1, inbox.MessageCount())
}

func TestUnparseableMessageIsRefused(t *testing.T) {
	inbox, addr := startServer(t, cfg.SMTP{Domain: "localhost"})

	content := []byte("this is not a header line\r\n\r\nbody\r\n")
	err := smtp.SendMail(addr, nil, "sender@example.org", []string{"you@example.org"}, content)
	require.Error(t, err)
	assert.Equal(t, 0, inbox.MessageCount())
}

func TestBandwidthLimitSlowsDelivery(t *testing.T) {
	inbox, addr := startServer(t, cfg.SMTP{
		Domain: "localhost",
		// pace well below the message size so the delivery takes a
		// measurable amount of time
		BandwidthLimit: 100 * 1024,
	})

	body := make([]byte, 64)
	for i := range body {
		body[i] = 'z'
	}
	content := append([]byte("Subject: slow\r\n\r\n"), body...)

	start := time.Now()
	err := smtp.SendMail(addr, nil, "sender@example.org", []string{"you@example.org"}, content)
	require.NoError(t, err)
	elapsed := time.Since(start)

	require.Equal(t, 1, inbox.MessageCount())
	// the first burst alone forces a wait at this rate
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}
