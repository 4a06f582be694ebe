package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"sync"

	mail "github.com/go-mail/mail/v2"
	"github.com/jmoiron/sqlx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"scriptportal-backend-go/internal/config"
	"scriptportal-backend-go/internal/models"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdown
}

// RenderMarkdown turns a notification body into HTML.
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type MailSender interface {
	Send(cfg config.SMTPConfig, to []string, subject, html string) error
}

// SMTPSender delivers mail with STARTTLS required.
type SMTPSender struct{}

func (SMTPSender) Send(cfg config.SMTPConfig, to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if cfg.Host == "" || cfg.From == "" {
		return fmt.Errorf("smtp not configured (host/from)")
	}
	m := mail.NewMessage()
	m.SetHeader("From", cfg.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return d.DialAndSend(m)
}

// Notifier sends workflow emails. Every failure is logged and dropped.
type Notifier struct {
	DB            *sqlx.DB
	SMTP          config.SMTPConfig
	Sender        MailSender
	PublicBaseURL string
}

func (n *Notifier) toggles(ctx context.Context) NotificationSettings {
	toggles, err := LoadNotificationSettings(ctx, n.DB)
	if err != nil {
		log.Printf("notify: load toggles: %v", err)
	}
	return toggles
}

func (n *Notifier) adminRecipients(ctx context.Context, toggles NotificationSettings) []string {
	if toggles.AdminEmail != "" {
		return []string{toggles.AdminEmail}
	}
	emails := []string{}
	if err := n.DB.SelectContext(ctx, &emails, `SELECT email FROM admins ORDER BY created_at`); err != nil {
		log.Printf("notify: load admin emails: %v", err)
	}
	return emails
}

func (n *Notifier) send(ctx context.Context, to []string, subject, body string) {
	if n == nil || n.Sender == nil || len(to) == 0 {
		return
	}
	cfg, err := LoadSMTP(ctx, n.DB, n.SMTP)
	if err != nil {
		log.Printf("notify: load smtp settings: %v", err)
		cfg = n.SMTP
	}
	if cfg.Host == "" {
		return
	}
	html, err := RenderMarkdown(body)
	if err != nil {
		log.Printf("notify: render %q: %v", subject, err)
		return
	}
	if err := n.Sender.Send(cfg, to, subject, html); err != nil {
		log.Printf("notify: send %q to %s: %v", subject, strings.Join(to, ","), err)
	}
}

func (n *Notifier) ScriptSubmitted(ctx context.Context, script models.Script) {
	toggles := n.toggles(ctx)
	if !toggles.NotifySubmission {
		return
	}
	body := fmt.Sprintf("## New script submitted\n\n**%s** by %s (%s)\n\n- Tier: %s\n- Amount: %s\n- Payment: %s\n",
		script.Title, script.AuthorName, script.AuthorEmail, script.TierName, FormatAmount(script.Amount), script.PaymentStatus)
	n.send(ctx, n.adminRecipients(ctx, toggles), "New script: "+script.Title, body)
}

func (n *Notifier) ScriptAssigned(ctx context.Context, script models.Script, contractor models.Contractor) {
	if !n.toggles(ctx).NotifyAssignment {
		return
	}
	body := fmt.Sprintf("Hi %s,\n\nYou have been assigned **%s**.\n\nOpen your [dashboard](%s/contractor-dashboard) to start the review.\n",
		contractor.Name, script.Title, n.PublicBaseURL)
	n.send(ctx, []string{contractor.Email}, "New script assigned: "+script.Title, body)
}

func (n *Notifier) ReviewSubmitted(ctx context.Context, script models.Script, contractorName string) {
	toggles := n.toggles(ctx)
	if !toggles.NotifyReviewSubmitted {
		return
	}
	body := fmt.Sprintf("## Review submitted\n\n%s finished the review of **%s**.\n", contractorName, script.Title)
	n.send(ctx, n.adminRecipients(ctx, toggles), "Review submitted: "+script.Title, body)
}

func (n *Notifier) ContactReceived(ctx context.Context, contact models.Contact) {
	toggles := n.toggles(ctx)
	if !toggles.NotifyContact {
		return
	}
	subject := "New contact message"
	if contact.Subject != nil {
		subject += ": " + *contact.Subject
	}
	body := fmt.Sprintf("**%s** (%s) wrote:\n\n> %s\n", contact.Name, contact.Email,
		strings.ReplaceAll(contact.Message, "\n", "\n> "))
	n.send(ctx, n.adminRecipients(ctx, toggles), subject, body)
}

// FormatAmount renders cents as dollars.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
