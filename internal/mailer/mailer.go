// Package mailer delivers participant notifications. The engines treat
// every send as fire-and-forget: a failed send is logged and never
// rolls back the state transition that triggered it.
package mailer

import (
	"fmt"
	"log"
	"net/smtp"

	"hackreg/backend/internal/models"
)

// Mailer is the notification contract the admission and team engines
// depend on.
type Mailer interface {
	SendVerificationEmail(user *models.User, token string)
	SendApplicationEmail(user *models.User)
	SendAdmittanceEmail(user *models.User)
	SendAdmittanceTerminalEmail(user *models.User)
	SendConfirmationEmail(user *models.User)
	SendDeclinedEmail(user *models.User)
	SendRejectEmails(users []models.User)
	SendLaggerEmails(users []models.User)
	SendPasswordResetEmail(user *models.User, token string)
	SendPasswordChangedEmail(user *models.User)
}

// SMTPMailer sends plain-text emails over SMTP. When Host is empty the
// mailer degrades to logging, which keeps development setups working
// without a mail server.
type SMTPMailer struct {
	Host    string
	Port    string
	User    string
	Pass    string
	From    string
	BaseURL string
}

func NewSMTPMailer(host, port, user, pass, from, baseURL string) *SMTPMailer {
	return &SMTPMailer{Host: host, Port: port, User: user, Pass: pass, From: from, BaseURL: baseURL}
}

func (m *SMTPMailer) send(to, subject, body string) {
	if m.Host == "" {
		log.Printf("mailer (dry run): to=%s subject=%q", to, subject)
		return
	}
	msg := []byte("From: " + m.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	if err := smtp.SendMail(m.Host+":"+m.Port, auth, m.From, []string{to}, msg); err != nil {
		log.Printf("mailer: failed to send %q to %s: %v", subject, to, err)
	}
}

func (m *SMTPMailer) SendVerificationEmail(user *models.User, token string) {
	m.send(user.Email, "Verify your email",
		fmt.Sprintf("Hi %s,\n\nPlease verify your email address:\n%s/verify/%s\n", user.Nickname, m.BaseURL, token))
}

func (m *SMTPMailer) SendApplicationEmail(user *models.User) {
	m.send(user.Email, "Application received",
		fmt.Sprintf("Hi %s,\n\nWe have received your application. We'll be in touch!\n", user.Nickname))
}

func (m *SMTPMailer) SendAdmittanceEmail(user *models.User) {
	m.send(user.Email, "You're in!",
		fmt.Sprintf("Hi %s,\n\nYou have been admitted. Log in and confirm your spot before the deadline:\n%s\n", user.Nickname, m.BaseURL))
}

func (m *SMTPMailer) SendAdmittanceTerminalEmail(user *models.User) {
	m.send(user.Email, "You're in - Terminal track",
		fmt.Sprintf("Hi %s,\n\nYou have been admitted to the Terminal track. Log in and confirm your spot before the deadline:\n%s\n", user.Nickname, m.BaseURL))
}

func (m *SMTPMailer) SendConfirmationEmail(user *models.User) {
	m.send(user.Email, "See you there!",
		fmt.Sprintf("Hi %s,\n\nYour attendance is confirmed.\n", user.Nickname))
}

func (m *SMTPMailer) SendDeclinedEmail(user *models.User) {
	m.send(user.Email, "Sorry to see you go",
		fmt.Sprintf("Hi %s,\n\nYou have declined your admission. We hope to see you next year!\n", user.Nickname))
}

func (m *SMTPMailer) SendRejectEmails(users []models.User) {
	for i := range users {
		m.send(users[i].Email, "Application update",
			fmt.Sprintf("Hi %s,\n\nUnfortunately we cannot offer you a spot this year.\n", users[i].Nickname))
	}
}

func (m *SMTPMailer) SendLaggerEmails(users []models.User) {
	for i := range users {
		m.send(users[i].Email, "Finish your application",
			fmt.Sprintf("Hi %s,\n\nYour application is still incomplete. Submit it before registration closes!\n", users[i].Nickname))
	}
}

func (m *SMTPMailer) SendPasswordResetEmail(user *models.User, token string) {
	m.send(user.Email, "Password reset",
		fmt.Sprintf("Hi %s,\n\nReset your password here:\n%s/reset/%s\n", user.Nickname, m.BaseURL, token))
}

func (m *SMTPMailer) SendPasswordChangedEmail(user *models.User) {
	m.send(user.Email, "Your password was changed",
		fmt.Sprintf("Hi %s,\n\nYour password was just changed. If this wasn't you, contact us immediately.\n", user.Nickname))
}

// Nop discards every notification. Used in tests.
type Nop struct{}

func (Nop) SendVerificationEmail(*models.User, string)  {}
func (Nop) SendApplicationEmail(*models.User)           {}
func (Nop) SendAdmittanceEmail(*models.User)            {}
func (Nop) SendAdmittanceTerminalEmail(*models.User)    {}
func (Nop) SendConfirmationEmail(*models.User)          {}
func (Nop) SendDeclinedEmail(*models.User)              {}
func (Nop) SendRejectEmails([]models.User)              {}
func (Nop) SendLaggerEmails([]models.User)              {}
func (Nop) SendPasswordResetEmail(*models.User, string) {}
func (Nop) SendPasswordChangedEmail(*models.User)       {}

