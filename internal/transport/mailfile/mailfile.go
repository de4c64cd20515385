// Package mailfile reads emails from disk for the ingest command.
//
// Three formats are understood: RFC 5322 messages (mail), one JSON object per line (jsonl),
// and the plain-text export with Subject/From/Date lines followed by "Body:" (text).
package mailfile

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Format selects the parser for a file.
type Format string

// Supported formats.
const (
	FormatAuto  Format = "auto"
	FormatMail  Format = "mail"
	FormatJSONL Format = "jsonl"
	FormatText  Format = "text"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatMail, FormatJSONL, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (auto, mail, jsonl, text)", domain.ErrInvalidInput, s)
	}
}

// maxLineBytes bounds a single jsonl record.
const maxLineBytes = 16 << 20

// Rejected is an input record that could not be turned into a message.
// MessageID is the record's own id when it has one, otherwise its location in the file.
type Rejected struct {
	Owner     string
	MessageID string
	Line      int
	Err       error
}

func (r Rejected) Error() string { return r.Err.Error() }
func (r Rejected) Unwrap() error { return r.Err }

// ReadFile parses path into messages owned by owner. Records that cannot be read
// come back as Rejected and do not stop the rest of the file.
// For jsonl, a record's own owner wins over the argument.
func ReadFile(path, owner string, format Format) ([]domain.Message, []Rejected) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, []Rejected{{Owner: owner, MessageID: path, Err: fmt.Errorf("read %s: %w", path, err)}}
	}
	if format == FormatAuto || format == "" {
		format = Detect(path, data)
	}

	var parse func([]byte, string) (domain.Message, error)
	switch format {
	case FormatJSONL:
		msgs, rejected, err := ParseJSONL(bytes.NewReader(data), owner)
		if err != nil {
			rejected = append(rejected, Rejected{Owner: owner, Err: err})
		}
		for i := range rejected {
			rejected[i] = locate(path, rejected[i])
		}
		return msgs, rejected
	case FormatText:
		parse = ParseText
	default:
		parse = ParseMail
	}

	m, err := parse(data, owner)
	if err != nil {
		return nil, []Rejected{locate(path, Rejected{Owner: owner, Err: err})}
	}
	return []domain.Message{m}, nil
}

func locate(path string, r Rejected) Rejected {
	r.Err = fmt.Errorf("parse %s: %w", path, r.Err)
	if r.MessageID != "" {
		return r
	}
	r.MessageID = path
	if r.Line > 0 {
		r.MessageID = fmt.Sprintf("%s:%d", path, r.Line)
	}
	return r
}

var bodyLine = regexp.MustCompile(`(?m)^Body:`)

// Detect guesses the format from the extension first and the content second.
func Detect(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".eml":
		return FormatMail
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSONL
	}
	// the export has no blank line between its headers and "Body:"
	head := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if i := bytes.Index(head, []byte("\n\n")); i >= 0 {
		head = head[:i]
	}
	if bodyLine.Match(head) {
		return FormatText
	}
	return FormatMail
}

// ContentID derives a message id from raw file contents, for messages without a Message-ID.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// ParseMail parses an RFC 5322 message. Multipart bodies keep their text/plain parts,
// falling back to text/html with tags stripped.
func ParseMail(data []byte, owner string) (domain.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: not an RFC 5322 message: %w", domain.ErrInvalidInput, err)
	}

	body, err := extractBody(msg.Header.Get("Content-Type"), msg.Body)
	if err != nil {
		return domain.Message{}, err
	}

	id := strings.TrimSpace(msg.Header.Get("Message-ID"))
	if id == "" {
		id = ContentID(data)
	}

	var date time.Time
	if d, err := msg.Header.Date(); err == nil {
		date = d.UTC()
	}

	return domain.NewMessage(owner, id,
		decodeHeader(msg.Header.Get("From")),
		decodeHeader(msg.Header.Get("Subject")),
		date, strings.TrimSpace(body))
}

// ParseText parses the plain-text export: header lines, then "Body:" and the body.
// The export carries no Message-ID, so the id is always derived from the contents.
func ParseText(data []byte, owner string) (domain.Message, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var from, subject string
	var date time.Time
	var body strings.Builder
	inBody := false

	for _, line := range strings.SplitAfter(text, "\n") {
		if inBody {
			body.WriteString(line)
			continue
		}
		key, value, ok := strings.Cut(strings.TrimRight(line, "\n"), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "subject":
			subject = value
		case "from":
			from = value
		case "date":
			if d, err := mail.ParseDate(value); err == nil {
				date = d.UTC()
			}
		case "body":
			inBody = true
			body.WriteString(value)
			if value != "" {
				body.WriteString("\n")
			}
		}
	}
	if !inBody {
		return domain.Message{}, fmt.Errorf("%w: no Body: line", domain.ErrInvalidInput)
	}
	return domain.NewMessage(owner, ContentID(data), from, subject, date, strings.TrimSpace(body.String()))
}

// jsonlRecord is one line of a jsonl file.
type jsonlRecord struct {
	Owner     string `json:"owner"`
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Date      string `json:"date"`
	Body      string `json:"body"`
}

// ParseJSONL parses one message per line. Blank lines are skipped and bad lines are
// returned as Rejected. The error is non-nil only when reading stops early, in which
// case the messages parsed so far are still returned.
// A record without message_id gets the content id of its line.
func ParseJSONL(r io.Reader, owner string) ([]domain.Message, []Rejected, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		out      []domain.Message
		rejected []Rejected
	)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		m, rec, err := parseRecord(line, owner)
		if err != nil {
			rejected = append(rejected, Rejected{
				Owner:     rec.Owner,
				MessageID: rec.MessageID,
				Line:      lineNo,
				Err:       fmt.Errorf("line %d: %w", lineNo, err),
			})
			continue
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return out, rejected, fmt.Errorf("%w: line %d: %w", domain.ErrInvalidInput, lineNo+1, err)
	}
	return out, rejected, nil
}

// parseRecord decodes one jsonl line. The returned record keeps whatever owner and
// id could be read, for reporting a rejected line.
func parseRecord(line []byte, owner string) (domain.Message, jsonlRecord, error) {
	var rec jsonlRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return domain.Message{}, jsonlRecord{Owner: owner}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if rec.Owner == "" {
		rec.Owner = owner
	}
	if rec.MessageID == "" {
		rec.MessageID = ContentID(line)
	}
	date, err := parseDate(rec.Date)
	if err != nil {
		return domain.Message{}, rec, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	m, err := domain.NewMessage(rec.Owner, rec.MessageID, rec.From, rec.Subject, date, rec.Body)
	return m, rec, err
}

// parseDate accepts RFC 3339 and RFC 5322 dates. Empty means unknown.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := mail.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", s)
	}
	return t.UTC(), nil
}

// decodeHeader decodes RFC 2047 encoded words, returning the raw value when decoding fails.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

func extractBody(contentType string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipart(r, params["boundary"])
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrInvalidInput, err)
	}
	if mediaType == "text/html" {
		return stripHTML(string(raw)), nil
	}
	return string(raw), nil
}

func extractMultipart(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", fmt.Errorf("%w: multipart body without boundary", domain.ErrInvalidInput)
	}

	var plain, html []string
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: multipart: %w", domain.ErrInvalidInput, err)
		}
		text, err := extractBody(part.Header.Get("Content-Type"), part)
		if err != nil {
			return "", err
		}
		mediaType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		switch {
		case mediaType == "text/html":
			html = append(html, text)
		case mediaType == "" || strings.HasPrefix(mediaType, "text/") || strings.HasPrefix(mediaType, "multipart/"):
			plain = append(plain, text)
		}
	}
	if len(plain) > 0 {
		return strings.Join(plain, "\n"), nil
	}
	return strings.Join(html, "\n"), nil
}

var (
	htmlTag    = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlBlanks = regexp.MustCompile(`[ \t]+`)
)

func stripHTML(s string) string {
	s = htmlTag.ReplaceAllString(s, " ")
	s = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`).Replace(s)
	return strings.TrimSpace(htmlBlanks.ReplaceAllString(s, " "))
}
