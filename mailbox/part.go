package mailbox

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/textproto"

	"github.com/localmail/localmail/lib"
)

// Part is a read-only view over one parsed MIME part: its headers, its raw
// body bytes (transfer encoding untouched) and, for a multipart document,
// its children. A delivered message is the root Part of such a tree.
type Part struct {
	header message.Header
	raw    []byte
	body   []byte
	parts  []*Part
}

// ReadPart parses a raw mail document into a part tree. The original bytes
// are kept as-is so the body can be served back byte-identical.
func ReadPart(raw []byte) (*Part, error) {
	reader := bufio.NewReader(bytes.NewReader(raw))
	header, err := textproto.ReadHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("cannot parse message header: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read message body: %w", err)
	}
	part := &Part{
		header: message.Header{Header: header},
		raw:    raw,
		body:   body,
	}
	mediaType, params, err := part.header.ContentType()
	if err == nil && strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		part.parts, err = splitMultipart(body, params["boundary"])
		if err != nil {
			return nil, err
		}
	}
	return part, nil
}

// Headers returns the requested header values keyed by lower-cased name,
// with an empty string for a missing header. When negate is set it returns
// every header whose name is not in names instead. Name matching is
// case-insensitive both ways.
func (p *Part) Headers(negate bool, names ...string) map[string]string {
	headers := make(map[string]string)
	if negate {
		fields := p.header.Fields()
		for fields.Next() {
			if !containsFold(names, fields.Key()) {
				headers[strings.ToLower(fields.Key())] = fields.Value()
			}
		}
		return headers
	}
	for _, name := range names {
		headers[strings.ToLower(name)] = p.header.Get(name)
	}
	return headers
}

// Body returns the raw body bytes of a leaf part. The content transfer
// encoding is left alone: what was delivered is what comes back.
func (p *Part) Body() (io.Reader, error) {
	if p.IsMultipart() {
		return nil, lib.ErrMultipartBody
	}
	return bytes.NewReader(p.body), nil
}

// Size is the byte length of the whole re-serialized part, headers included.
func (p *Part) Size() int {
	buffer := &bytes.Buffer{}
	_ = textproto.WriteHeader(buffer, p.header.Header)
	buffer.Write(p.body)
	return buffer.Len()
}

func (p *Part) IsMultipart() bool {
	return p.parts != nil
}

func (p *Part) SubPart(index int) (*Part, error) {
	if !p.IsMultipart() {
		return nil, lib.ErrNotMultipart
	}
	if index < 0 || index >= len(p.parts) {
		return nil, fmt.Errorf("message has no sub-part %d", index)
	}
	return p.parts[index], nil
}

// Charset resolves the character set declared in the Content-Type header,
// falling back to defaultCharset when there is none.
func (p *Part) Charset(defaultCharset string) string {
	_, params, err := p.header.ContentType()
	if err == nil && params["charset"] != "" {
		return params["charset"]
	}
	return defaultCharset
}

// HeaderText decodes a header value made of one or more RFC 2047 encoded
// words into a single string. A value with no encoding marker is returned
// as plain text, and so is a value in a charset we cannot decode.
func (p *Part) HeaderText(name string) (string, error) {
	text, err := p.header.Text(name)
	if message.IsUnknownCharset(err) {
		return p.header.Get(name), nil
	}
	return text, err
}

// Text returns the part body with transfer encoding and charset undone.
func (p *Part) Text() (string, error) {
	entity, err := message.Read(bytes.NewReader(p.raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return "", fmt.Errorf("cannot decode part: %w", err)
	}
	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return "", fmt.Errorf("cannot decode part: %w", err)
	}
	return string(content), nil
}

// Texts sends the decoded text of every leaf part to the channel, in
// document order, each part decoded with its own charset. The channel is
// closed when the walk is finished; call again with a fresh channel to
// restart.
func (p *Part) Texts(texts chan<- string) error {
	defer close(texts)
	return p.walkTexts(texts)
}

func (p *Part) walkTexts(texts chan<- string) error {
	if p.IsMultipart() {
		for _, sub := range p.parts {
			if err := sub.walkTexts(texts); err != nil {
				return err
			}
		}
		return nil
	}
	text, err := p.Text()
	if err != nil {
		return err
	}
	texts <- text
	return nil
}

// Raw returns the part exactly as it was delivered.
func (p *Part) Raw() []byte {
	return p.raw
}

// splitMultipart cuts a multipart body into its raw sub-parts. It only
// handles the boundary lines itself: the stdlib multipart reader silently
// undoes quoted-printable encoding, which would break the byte-exact body
// contract.
func splitMultipart(body []byte, boundary string) ([]*Part, error) {
	delimiter := "--" + boundary

	var chunks [][]byte
	var current *bytes.Buffer

	finish := func() {
		if current != nil {
			chunks = append(chunks, trimFinalEOL(current.Bytes()))
		}
	}

	for start := 0; start < len(body); {
		var line []byte
		if end := bytes.IndexByte(body[start:], '\n'); end < 0 {
			line = body[start:]
			start = len(body)
		} else {
			line = body[start : start+end+1]
			start += end + 1
		}
		switch strings.TrimRight(string(line), "\r\n") {
		case delimiter:
			finish()
			current = &bytes.Buffer{}
		case delimiter + "--":
			finish()
			current = nil
			start = len(body)
		default:
			if current != nil {
				current.Write(line)
			}
		}
	}
	// tolerate a missing closing delimiter
	finish()

	parts := make([]*Part, 0, len(chunks))
	for _, chunk := range chunks {
		part, err := ReadPart(chunk)
		if err != nil {
			return nil, fmt.Errorf("cannot parse multipart content: %w", err)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// trimFinalEOL removes the line ending preceding a boundary line, which
// belongs to the boundary and not to the part.
func trimFinalEOL(chunk []byte) []byte {
	chunk = bytes.TrimSuffix(chunk, []byte("\n"))
	return bytes.TrimSuffix(chunk, []byte("\r"))
}

func containsFold(names []string, name string) bool {
	for _, candidate := range names {
		if strings.EqualFold(candidate, name) {
			return true
		}
	}
	return false
}
