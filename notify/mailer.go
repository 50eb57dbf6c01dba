package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultSMTPPort is the authenticated submission port.
const DefaultSMTPPort = 587

type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends notifications over SMTP with mandatory STARTTLS and PLAIN
// authentication.
type Mailer struct {
	Logger *slog.Logger
	client sender
	from   string
	to     []string
}

func NewMailer(cfg MailerConfig, logger *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is not set")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is not set")
	}
	if len(cfg.To) == 0 {
		return nil, fmt.Errorf("no recipients configured")
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultSMTPPort
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &Mailer{
		Logger: logger,
		client: client,
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

// SplitRecipients parses a comma or semicolon separated address list.
func SplitRecipients(s string) []string {
	var out []string
	for _, addr := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func (m *Mailer) Notify(ctx context.Context, msg Message) error {
	m.Logger.Info("Trying to send email", "subject", msg.Subject)

	email, err := m.build(msg)
	if err != nil {
		return &NotificationError{Subject: msg.Subject, Cause: err}
	}

	if err := m.client.DialAndSendWithContext(ctx, email); err != nil {
		return &NotificationError{Subject: msg.Subject, Cause: err}
	}

	m.Logger.Info(fmt.Sprintf("Email notification is sent to %s", strings.Join(m.to, ", ")))
	return nil
}

func (m *Mailer) build(msg Message) (*mail.Msg, error) {
	email := mail.NewMsg()
	if err := email.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := email.To(m.to...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	email.Subject(msg.Subject)
	email.SetBodyString(mail.TypeTextPlain, msg.Body)

	if msg.Attachment != "" {
		if _, err := os.Stat(msg.Attachment); err != nil {
			return nil, fmt.Errorf("failed to attach file: %w", err)
		}
		email.AttachFile(msg.Attachment)
	}
	return email, nil
}
