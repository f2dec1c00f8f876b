package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"

	"bloudan-catalogue/config"
)

// EmailMessage is one outgoing email with a single attachment
type EmailMessage struct {
	To             string
	Subject        string
	Body           string
	AttachmentName string
	Attachment     []byte
}

// Mailer sends emails. Transport details stay behind this interface.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPMailer sends through an SMTP relay
type SMTPMailer struct {
	client *mail.Client
	from   string
}

// Ensure SMTPMailer implements Mailer
var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for the configured relay.
// Authentication is used only when a user is configured.
func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	if cfg.SMTPHost == "" {
		return nil, errors.New("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("sender address is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// Send builds the message and delivers it in one SMTP session
func (m *SMTPMailer) Send(ctx context.Context, msg EmailMessage) error {
	mm := mail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := mm.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)
	if len(msg.Attachment) > 0 {
		if err := mm.AttachReader(msg.AttachmentName, bytes.NewReader(msg.Attachment)); err != nil {
			return fmt.Errorf("failed to attach %s: %w", msg.AttachmentName, err)
		}
	}

	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
