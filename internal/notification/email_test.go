package notification

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"resellerportal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderBody_Sale(t *testing.T) {
	body, err := RenderBody(model.EventAssignmentSold,
		`{"resellerUsername":"shop1","deviceName":"iPhone 15","salePrice":"350","minimumPrice":"300","profit":"50"}`)
	require.NoError(t, err)

	assert.Contains(t, body, "shop1 sold iPhone 15.")
	assert.Contains(t, body, "Sale price: 350")
	assert.Contains(t, body, "Profit: 50")
	assert.NotContains(t, body, "Notes:")
}

func TestRenderBody_ShippedOmitsMissingTracking(t *testing.T) {
	body, err := RenderBody(model.EventAssignmentShipped,
		`{"deviceName":"Pixel 8","shipping":{"method":"pickup"}}`)
	require.NoError(t, err)

	assert.Equal(t, "Pixel 8 has been shipped via pickup.", body)
}

func TestRenderBody_Errors(t *testing.T) {
	_, err := RenderBody("device.melted", `{}`)
	assert.Error(t, err)

	_, err = RenderBody(model.EventAssignmentSold, `not json`)
	assert.Error(t, err)
}

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func TestEmailSender_Send(t *testing.T) {
	var got capturedMail
	sender := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: "587", From: "portal@example.com"}, zap.NewNop())
	sender.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		got = capturedMail{addr: addr, from: from, to: to, msg: string(msg)}
		return nil
	}

	err := sender.Send(context.Background(), model.Notification{
		Event:          model.EventAssignmentSaleReverse,
		RecipientEmail: "admin@example.com",
		Subject:        "Sale reversed",
		Payload:        `{"resellerUsername":"shop1","deviceName":"iPhone 15","reason":"customer returned it"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, "portal@example.com", got.from)
	assert.Equal(t, []string{"admin@example.com"}, got.to)
	assert.Contains(t, got.msg, "Subject: Sale reversed\r\n")
	assert.Contains(t, got.msg, "Reason: customer returned it")
}

func TestEmailSender_FailureKinds(t *testing.T) {
	sender := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: "25"}, zap.NewNop())
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("421 service not available")
	}

	n := model.Notification{Event: model.EventAssignmentApproved, RecipientEmail: "shop@example.com", Payload: `{"deviceName":"Phone"}`}
	err := sender.Send(context.Background(), n)
	require.Error(t, err)
	assert.False(t, IsPermanent(err), "transport errors are retried")

	n.RecipientEmail = ""
	err = sender.Send(context.Background(), n)
	assert.True(t, IsPermanent(err))

	n.RecipientEmail = "shop@example.com"
	n.Event = "unknown.event"
	assert.True(t, IsPermanent(sender.Send(context.Background(), n)))
}

func TestEmailSender_DisabledWithoutHost(t *testing.T) {
	sender := NewEmailSender(SMTPConfig{}, zap.NewNop())
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail must not be called when smtp is disabled")
		return nil
	}

	err := sender.Send(context.Background(), model.Notification{
		Event:          model.EventInviteIssued,
		RecipientEmail: "new@example.com",
		Payload:        `{"roleName":"manager","link":"https://portal.example.com/invite?token=abc","expiresAt":"2026-03-04T09:00:00Z"}`,
	})
	assert.NoError(t, err)
}

func TestScheduler_RejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	err := s.Add("broken", "not a cron spec", func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.NoError(t, s.Add("outbox", "@every 10s", func(context.Context) error { return nil }))
}
