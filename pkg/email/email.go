package email

import (
	"fmt"
	"net/smtp"
)

// Sender delivers plain-text mail through an SMTP relay.
type Sender struct {
	Host     string
	Port     string
	From     string
	Password string
}

func NewSender(host, port, from, password string) *Sender {
	return &Sender{Host: host, Port: port, From: from, Password: password}
}

// Send delivers a plain text email using SMTP.
func (s *Sender) Send(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)

	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")

	address := s.Host + ":" + s.Port

	err := smtp.SendMail(address, auth, s.From, []string{to}, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
