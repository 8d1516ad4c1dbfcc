package notify

import (
	"fmt"
	"log"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/hydronote/groundwatch/internal/domain"
)

// EmailSender delivers notifications over SendGrid to a fixed demo inbox.
type EmailSender struct {
	apiKey      string
	fromName    string
	fromAddress string
	to          string
}

// NewEmailSenderFromEnv returns nil when EMAIL_API_KEY or ALERT_EMAIL_TO is
// unset, which disables email delivery entirely.
func NewEmailSenderFromEnv() *EmailSender {
	apiKey := os.Getenv("EMAIL_API_KEY")
	to := os.Getenv("ALERT_EMAIL_TO")
	if apiKey == "" || to == "" {
		return nil
	}

	return &EmailSender{
		apiKey:      apiKey,
		fromName:    os.Getenv("FROM_NAME"),
		fromAddress: os.Getenv("FROM_ADDRESS"),
		to:          to,
	}
}

func (s *EmailSender) Send(n *domain.Notification) error {
	from := mail.NewEmail(s.fromName, s.fromAddress)
	to := mail.NewEmail("", s.to)
	email := mail.NewSingleEmail(from, n.Title, to, n.Body, n.Body)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	log.Printf("Email sent to %s (status: %d)", s.to, response.StatusCode)
	return nil
}
