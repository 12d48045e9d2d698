package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"
	"text/template"

	"resellerportal/internal/model"

	"go.uber.org/zap"
)

// SMTPConfig holds outgoing mail settings. An empty Host disables delivery.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender renders a notification into a plain-text email and sends it over SMTP.
type EmailSender struct {
	cfg      SMTPConfig
	log      *zap.Logger
	sendMail sendMailFunc
}

func NewEmailSender(cfg SMTPConfig, log *zap.Logger) *EmailSender {
	return &EmailSender{cfg: cfg, log: log, sendMail: smtp.SendMail}
}

func (s *EmailSender) Send(_ context.Context, n model.Notification) error {
	if n.RecipientEmail == "" {
		return Permanent(errors.New("notification has no recipient email"))
	}

	body, err := RenderBody(n.Event, n.Payload)
	if err != nil {
		return Permanent(err)
	}

	if s.cfg.Host == "" {
		s.log.Info("smtp disabled, email not sent",
			zap.String("to", n.RecipientEmail),
			zap.String("subject", n.Subject),
			zap.String("event", n.Event),
		)
		return nil
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", from, n.RecipientEmail, n.Subject, body))

	addr := s.cfg.Host + ":" + s.cfg.Port
	if err := s.sendMail(addr, auth, from, []string{n.RecipientEmail}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var bodyTemplates = map[string]*template.Template{
	model.EventInviteIssued: template.Must(template.New("invite").Parse(
		`You have been invited to the reseller portal as {{.roleName}}.

Complete your registration here: {{.link}}
The link expires at {{.expiresAt}}.`)),
	model.EventInviteResent: template.Must(template.New("invite_resent").Parse(
		`Your invitation to the reseller portal has been renewed.

Complete your registration here: {{.link}}
The link now expires at {{.expiresAt}}.`)),
	model.EventPasswordResetRequest: template.Must(template.New("reset").Parse(
		`A password reset was requested for {{.username}}.

Choose a new password here: {{.link}}
The link expires at {{.expiresAt}}. If you did not request this, ignore this email.`)),
	model.EventAssignmentCreated: template.Must(template.New("created").Parse(
		`Device {{.deviceName}} has been assigned to you with a minimum price of {{.minimumPrice}}.
It ships once an administrator approves it.`)),
	model.EventAssignmentApproved: template.Must(template.New("approved").Parse(
		`Shipping of {{.deviceName}} has been approved.{{if .notes}}

Notes: {{.notes}}{{end}}`)),
	model.EventAssignmentShipped: template.Must(template.New("shipped").Parse(
		`{{.deviceName}} has been shipped via {{.shipping.method}}.{{if .shipping.trackingNumber}}
Tracking number: {{.shipping.trackingNumber}}{{end}}{{if .shipping.trackingUrl}}
Track it here: {{.shipping.trackingUrl}}{{end}}{{if .shipping.estimatedDelivery}}
Estimated delivery: {{.shipping.estimatedDelivery}}{{end}}`)),
	model.EventAssignmentReceived: template.Must(template.New("received").Parse(
		`{{.resellerUsername}} confirmed receipt of {{.deviceName}}.{{if .condition}}
Condition: {{.condition}}{{end}}{{if .issues}}
Issues: {{.issues}}{{end}}{{if .notes}}
Notes: {{.notes}}{{end}}`)),
	model.EventAssignmentSold: template.Must(template.New("sold").Parse(
		`{{.resellerUsername}} sold {{.deviceName}}.
Sale price: {{.salePrice}}
Minimum price: {{.minimumPrice}}
Profit: {{.profit}}{{if .notes}}
Notes: {{.notes}}{{end}}`)),
	model.EventAssignmentSaleReverse: template.Must(template.New("reversed").Parse(
		`{{.resellerUsername}} reversed the sale of {{.deviceName}}.
Reason: {{.reason}}`)),
}

// RenderBody renders the plain-text body of an event from its JSON payload.
func RenderBody(event, payload string) (string, error) {
	tmpl, ok := bodyTemplates[event]
	if !ok {
		return "", fmt.Errorf("no email template for event %q", event)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return "", fmt.Errorf("invalid notification payload: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", event, err)
	}
	return buf.String(), nil
}
