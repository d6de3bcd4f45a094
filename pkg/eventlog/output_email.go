package eventlog

import (
	"fmt"
	"net/smtp"
)

// EmailOutput sends a transactional email per Record via net/smtp. No
// mail-sending library appears anywhere in the retrieval pack (full
// repos or manifests), so this is a standard-library-justified case —
// see DESIGN.md.
type EmailOutput struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
}

func NewEmailOutput(addr, from string, to []string, auth smtp.Auth) *EmailOutput {
	return &EmailOutput{addr: addr, auth: auth, from: from, to: to}
}

// buildMessage renders rec as a minimal RFC 5322 message. Kept as a
// standalone function so it can be unit tested without a live SMTP server.
func buildMessage(from string, to []string, rec Record) []byte {
	subject := fmt.Sprintf("[%s] %s", rec.Level, rec.SourceName)
	body := fmt.Sprintf("%s\n\ncontext: %v\nemitted_at: %s\n",
		rec.Message, rec.Context, rec.EmittedAt.Format("2006-01-02T15:04:05Z07:00"))

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		from, joinAddrs(to), subject, body)
	return []byte(msg)
}

func joinAddrs(addrs []string) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}

func (e *EmailOutput) Emit(rec Record) error {
	msg := buildMessage(e.from, e.to, rec)
	if err := smtp.SendMail(e.addr, e.auth, e.from, e.to, msg); err != nil {
		return fmt.Errorf("eventlog: send mail: %w", err)
	}
	return nil
}
