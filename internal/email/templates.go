package email

import (
	"fmt"
	"html"
	"time"
)

// SignInMessage builds the magic-link email
func SignInMessage(to, link string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	return Message{
		To:      to,
		Subject: "Your Tasklane sign-in link",
		TextBody: fmt.Sprintf(
			"Click the link below to sign in:\n\n%s\n\nThis link expires in %d minutes and can only be used once.",
			link, minutes,
		),
		HTMLBody: fmt.Sprintf(
			`<p>Click the link below to sign in:</p><p><a href="%s">Sign in to Tasklane</a></p><p>This link expires in %d minutes and can only be used once.</p>`,
			html.EscapeString(link), minutes,
		),
	}
}
