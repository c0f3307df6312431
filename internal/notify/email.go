package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// Sender delivers transactional mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	Addr string
	From string
	Auth smtp.Auth
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg))
}

// LogSender writes mail to the log instead of a relay. Used in dev and in
// deployments without SMTP credentials.
type LogSender struct {
	Log zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Log.Info().Str("to", to).Str("subject", subject).Msg("email (log only)")
	return nil
}

// OrderConfirmationBody renders the plain-text confirmation email.
func OrderConfirmationBody(orderID, grandTotal, currency string) (subject, body string) {
	subject = fmt.Sprintf("Order %s received", orderID)
	body = fmt.Sprintf(
		"Thanks for your order!\n\nOrder ID: %s\nTotal: %s %s\n\nWe will let you know when the kitchen starts preparing it.\n",
		orderID, grandTotal, currency)
	return subject, body
}
