package notifications

import (
	"context"
	"fmt"
	"html"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
)

// Sender is satisfied by *utils.Mailer.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Email mails every signal to a fixed operations address.
type Email struct {
	sender Sender
	to     string
}

func NewEmail(sender Sender, to string) *Email {
	return &Email{sender: sender, to: to}
}

var subjects = map[models.NotificationKind]string{
	models.NotifyTargetReached: "Funding target reached",
	models.NotifyCheckoutReady: "Event ready for checkout",
	models.NotifyCompleted:     "Event completed",
	models.NotifyCancelled:     "Event cancelled",
}

func (n *Email) Notify(ctx context.Context, kind models.NotificationKind, p models.NotificationPayload) error {
	subject, ok := subjects[kind]
	if !ok {
		subject = string(kind)
	}
	body := fmt.Sprintf("<p>%s</p><p>Event: %s</p>", html.EscapeString(Message(kind, p)), p.EventID.Hex())
	return n.sender.SendEmail(ctx, n.to, subject+": "+p.Title, body)
}
