// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	EnableTLS bool
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-archive"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// NotificationData holds data for the maintainer notification template
type NotificationData struct {
	AppName         string
	CollectionTitle string
	Message         string
}

type RevealData struct {
	AppName         string
	ItemTitle       string
	CollectionTitle string
}

// SendCollectionNotification sends a message to a collection's maintainers
func (s *Service) SendCollectionNotification(to []string, subject, message, collectionTitle string) error {
	data := NotificationData{
		AppName:         "Archive",
		CollectionTitle: collectionTitle,
		Message:         message,
	}

	html, err := renderTemplate(notificationEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render notification template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

// SendRevealNotification tells a creator their item is now visible
func (s *Service) SendRevealNotification(to, itemTitle, collectionTitle string) error {
	data := RevealData{
		AppName:         "Archive",
		ItemTitle:       itemTitle,
		CollectionTitle: collectionTitle,
	}

	subject := fmt.Sprintf("Your work in %s has been revealed", collectionTitle)
	html, err := renderTemplate(revealEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render reveal template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendAuthorRevealNotification tells a creator their name now shows on an item
func (s *Service) SendAuthorRevealNotification(to, itemTitle, collectionTitle string) error {
	data := RevealData{
		AppName:         "Archive",
		ItemTitle:       itemTitle,
		CollectionTitle: collectionTitle,
	}

	subject := fmt.Sprintf("Your name is now visible in %s", collectionTitle)
	html, err := renderTemplate(authorRevealEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render author reveal template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const notificationEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>A message for the maintainers of {{.CollectionTitle}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #900; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>About your collection {{.CollectionTitle}}</h2>

    <p>{{.Message}}</p>

    <div class="footer">
        <p>You are receiving this because you maintain {{.CollectionTitle}} on {{.AppName}}.</p>
    </div>
</body>
</html>`

const revealEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your work has been revealed</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #900; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Your work is now visible!</h2>

    <p>The collection {{.CollectionTitle}} has revealed its works. Your piece &ldquo;{{.ItemTitle}}&rdquo; can now be seen by everyone.</p>

    <div class="footer">
        <p>You are receiving this because you have a work or bookmark in {{.CollectionTitle}} on {{.AppName}}.</p>
    </div>
</body>
</html>`

const authorRevealEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your name is now visible</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #900; padding-bottom: 10px; margin-bottom: 20px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>The creators have been revealed</h2>

    <p>The collection {{.CollectionTitle}} is no longer anonymous. Your name is now visible on &ldquo;{{.ItemTitle}}&rdquo;.</p>

    <div class="footer">
        <p>You are receiving this because you have a work or bookmark in {{.CollectionTitle}} on {{.AppName}}.</p>
    </div>
</body>
</html>`
