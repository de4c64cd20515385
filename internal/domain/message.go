package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxIdentifierLen bounds owner and message identifiers in bytes.
const MaxIdentifierLen = 512

// Message is an ingested email (immutable value object).
type Message struct {
	owner      string
	id         string
	from       string
	subject    string
	receivedAt time.Time
	body       string
}

// NewMessage validates and creates a Message.
// Owner and id are trimmed and required. Headers and body may be empty, but not all of them.
func NewMessage(owner, id, from, subject string, receivedAt time.Time, body string) (Message, error) {
	owner = strings.TrimSpace(owner)
	id = strings.TrimSpace(id)

	if owner == "" {
		return Message{}, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if id == "" {
		return Message{}, fmt.Errorf("%w: message id is required", ErrInvalidInput)
	}
	if len(owner) > MaxIdentifierLen || len(id) > MaxIdentifierLen {
		return Message{}, fmt.Errorf("%w: identifier too long (max %d)", ErrInvalidInput, MaxIdentifierLen)
	}

	m := Message{
		owner:      owner,
		id:         id,
		from:       strings.TrimSpace(from),
		subject:    strings.TrimSpace(subject),
		receivedAt: receivedAt,
		body:       body,
	}
	if m.Text() == "" {
		return Message{}, fmt.Errorf("%w: message %q has no content", ErrInvalidInput, id)
	}
	return m, nil
}

// Owner returns the mailbox identity.
func (m Message) Owner() string { return m.owner }

// ID returns the message identifier, unique per owner.
func (m Message) ID() string { return m.id }

// From returns the sender.
func (m Message) From() string { return m.from }

// Subject returns the subject line.
func (m Message) Subject() string { return m.subject }

// ReceivedAt returns the message timestamp.
func (m Message) ReceivedAt() time.Time { return m.receivedAt }

// Body returns the plain-text body.
func (m Message) Body() string { return m.body }

// Source returns the reference every chunk of this message carries.
func (m Message) Source() SourceRef {
	return SourceRef{
		Owner:      m.owner,
		MessageID:  m.id,
		From:       m.from,
		Subject:    m.subject,
		ReceivedAt: m.receivedAt,
	}
}

// Text renders the canonical text that gets chunked and embedded.
// Headers go first so sender and subject are searchable.
func (m Message) Text() string {
	var b strings.Builder
	if m.from != "" {
		b.WriteString("From: ")
		b.WriteString(m.from)
		b.WriteByte('\n')
	}
	if m.subject != "" {
		b.WriteString("Subject: ")
		b.WriteString(m.subject)
		b.WriteByte('\n')
	}
	if !m.receivedAt.IsZero() {
		b.WriteString("Date: ")
		b.WriteString(m.receivedAt.Format(time.RFC1123Z))
		b.WriteByte('\n')
	}
	body := strings.TrimSpace(m.body)
	if body != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(body)
	}
	return b.String()
}
