package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	body, subject, err := Render(TemplateTechnicianAssigned, map[string]any{
		"customer_name":   "Asha",
		"technician_name": "Ravi",
		"order_code":      "SRV-260301-ABC123",
		"otp":             "123456",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "SRV-260301-ABC123")
	assert.Contains(t, body, "Ravi")
	assert.Equal(t, subjects[TemplateTechnicianAssigned], subject)

	_, subject, err = Render(TemplatePaymentReceived, map[string]any{"subject": "Thanks"})
	require.NoError(t, err)
	assert.Equal(t, "Thanks", subject)

	_, _, err = Render("missing", nil)
	assert.Error(t, err)
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 2525, From: "ops@fieldops.test"})

	var gotAddr string
	var gotMsg []byte
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Nil(t, a)
		assert.Equal(t, []string{"asha@example.com"}, to)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"asha@example.com"}, TemplateOrderReceived, map[string]any{
		"customer_name": "Asha",
		"order_code":    "SRV-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.True(t, strings.HasPrefix(string(gotMsg), "From: ops@fieldops.test\r\n"))
	assert.Contains(t, string(gotMsg), "Subject: We received your service request")

	assert.ErrorIs(t, p.Send(context.Background(), nil, "x", "y"), ErrNoRecipients)
}
