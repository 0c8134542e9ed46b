package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type Sender interface {
	Send(to string, subject string, body string) error
}

// SMTPSender sends plain-text email via unauthenticated SMTP
// (Mailpit-compatible). Auth-requiring relays are out of scope; production
// runs behind a local relay.
type SMTPSender struct {
	addr     string
	from     string
	fromName string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@homesaloon.local"
	}
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%s", host, port),
		from:     from,
		fromName: "HomeSaloon",
	}
}

func (s *SMTPSender) Send(to string, subject string, body string) error {
	msg := buildMessage(s.fromName, s.from, to, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg))
}

func buildMessage(fromName, from, to, subject, body string) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", fromName, from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}
