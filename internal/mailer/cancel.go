package mailer

import (
	"fmt"
	"html"
	"strings"
)

// CancelLinkMessage renders the guest cancellation email.
func CancelLinkMessage(to, category, link string) Message {
	label := category
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Confirm cancellation of your %s booking", category),
		Text: fmt.Sprintf(
			"We received a request to cancel your %s booking.\n\nConfirm the cancellation here: %s\n\nThe link expires in 2 hours. If you did not ask for this, ignore this email.\n",
			category, link),
		HTML: fmt.Sprintf(
			`<p>We received a request to cancel your %s booking.</p><p><a href="%s">Confirm cancellation</a></p><p>The link expires in 2 hours. If you did not ask for this, ignore this email.</p>`,
			html.EscapeString(label), html.EscapeString(link)),
	}
}
