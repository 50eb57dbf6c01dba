package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/opsdata/etl-scripts/config"
)

// MailMessage is one mailbox message with its raw RFC 5322 content.
type MailMessage struct {
	Subject  string
	Received time.Time
	Raw      []byte
}

// MailStore lists the messages whose subject contains subject.
type MailStore interface {
	Messages(ctx context.Context, subject string) ([]MailMessage, error)
}

// IMAPStore reads one folder of a mailbox over IMAP with implicit TLS.
type IMAPStore struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
}

func NewIMAPStore(cfg *config.Config) *IMAPStore {
	return &IMAPStore{
		Host:     cfg.Settings.IMAPHost,
		Port:     cfg.Settings.IMAPPort,
		Username: cfg.Credentials.EmailAddress,
		Password: cfg.Credentials.EmailPassword,
		Folder:   cfg.Settings.IMAPFolder,
	}
}

func (s *IMAPStore) Messages(ctx context.Context, subject string) ([]MailMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port := s.Port
	if port == 0 {
		port = config.DefaultIMAPPort
	}
	folder := s.Folder
	if folder == "" {
		folder = "INBOX"
	}

	client, err := imapclient.DialTLS(net.JoinHostPort(s.Host, strconv.Itoa(port)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mail server %s: %w", s.Host, err)
	}
	defer client.Close()
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	if err := client.Login(s.Username, s.Password).Wait(); err != nil {
		return nil, fmt.Errorf("failed to log in to mail server as %s: %w", s.Username, err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("failed to open mail folder '%s': %w", folder, err)
	}

	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: subject}},
	}
	found, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to search mail folder '%s': %w", folder, err)
	}
	uids := found.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	options := &imap.FetchOptions{
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}
	fetched, err := client.Fetch(imap.UIDSetNum(uids...), options).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %d messages: %w", len(uids), err)
	}

	messages := make([]MailMessage, 0, len(fetched))
	for _, m := range fetched {
		msg := MailMessage{Received: m.InternalDate, Raw: m.FindBodySection(section)}
		if m.Envelope != nil {
			msg.Subject = m.Envelope.Subject
			if msg.Received.IsZero() {
				msg.Received = m.Envelope.Date
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Mailbox saves spreadsheet attachments sent by email.
type Mailbox struct {
	Store  MailStore
	Logger *slog.Logger
}

// SaveLatestAttachment writes the first attachment named *ext of the most
// recently received message whose subject starts with subjectPrefix to
// dest. It returns that message's subject.
func (m *Mailbox) SaveLatestAttachment(ctx context.Context, subjectPrefix, ext, dest string) (string, error) {
	m.Logger.Info(fmt.Sprintf("Trying to download the latest attachment of '%s'", subjectPrefix))

	candidates, err := m.Store.Messages(ctx, subjectPrefix)
	if err != nil {
		return "", err
	}

	msg, ok := latestMessage(candidates, subjectPrefix)
	if !ok {
		return "", fmt.Errorf("no email with a subject starting with '%s'", subjectPrefix)
	}

	if err := saveAttachment(msg.Raw, ext, dest); err != nil {
		return "", fmt.Errorf("email '%s': %w", msg.Subject, err)
	}

	m.Logger.Info(fmt.Sprintf("Downloaded email attachment from '%s'", msg.Subject), "path", dest)
	return msg.Subject, nil
}

// latestMessage picks the newest message whose subject has the prefix.
// Server-side subject search is a substring match.
func latestMessage(messages []MailMessage, prefix string) (MailMessage, bool) {
	var matching []MailMessage
	for _, msg := range messages {
		if strings.HasPrefix(msg.Subject, prefix) {
			matching = append(matching, msg)
		}
	}
	if len(matching) == 0 {
		return MailMessage{}, false
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Received.After(matching[j].Received)
	})
	return matching[0], true
}

func saveAttachment(raw []byte, ext, dest string) error {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}
	defer reader.Close()

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("no %s attachment found", ext)
		}
		if err != nil {
			return fmt.Errorf("failed to read message part: %w", err)
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		name, err := header.Filename()
		if err != nil || !strings.HasSuffix(strings.ToLower(name), ext) {
			continue
		}
		return writeFile(dest, part.Body)
	}
}

func writeFile(dest string, body io.Reader) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return f.Close()
}
