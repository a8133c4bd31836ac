package mailer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mail recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mail subject is required")
	}
	return nil
}

// Mailer hands a message to the delivery pipeline.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them. It is
// the default for local runs and the delivery step of the queue worker
// until an SMTP relay is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	zap.L().Info("mail delivered to log",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("text_bytes", len(msg.Text)),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
