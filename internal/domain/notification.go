package domain

import (
	"time"

	"github.com/google/uuid"
)

// RelatedRef points a notification back at the entity that produced it.
type RelatedRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Notification is a fire-and-forget inbox message. Email is a delivery hint;
// the sink ignores it unless an email sender is configured.
type Notification struct {
	ID          string      `json:"id"`
	OrgID       string      `json:"org_id"`
	RecipientID string      `json:"recipient_id"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	Severity    Severity    `json:"severity"`
	Related     *RelatedRef `json:"related,omitempty"`
	Email       bool        `json:"email,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ReadAt      *time.Time  `json:"read_at,omitempty"`
}

func NewNotification(orgID, recipientID, title, body string, severity Severity) *Notification {
	return &Notification{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
		Severity:    severity,
		CreatedAt:   time.Now().UTC(),
	}
}
