package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/beaconly/beacon/internal/config"
	"github.com/beaconly/beacon/internal/provider"
)

type captureProvider struct {
	to      string
	subject string
	html    string
	err     error
}

func (c *captureProvider) Send(ctx context.Context, to, subject, html string) error {
	c.to, c.subject, c.html = to, subject, html
	return c.err
}

func newTestSender(p Provider) *Sender {
	return NewSender(Params{
		Config:   config.Config{AppURL: "https://beacon.example.com/"},
		Log:      zap.NewNop(),
		Provider: p,
	})
}

func TestSendAlertEmailFormatsSubjectAndBody(t *testing.T) {
	capture := &captureProvider{}
	s := newTestSender(capture)

	s.SendAlertEmail(context.Background(), AlertEmail{
		To:           "ops@example.com",
		ServiceID:    "1234",
		ServiceLabel: "Prod Stripe",
		ProviderName: "Stripe",
		MetricName:   "Account Balance",
		Condition:    provider.ConditionLT,
		Threshold:    "100",
		Value:        "42.5",
		Message:      "Balance is running low",
	})

	assert.Equal(t, "ops@example.com", capture.to)
	assert.Equal(t, "[Beacon] Stripe: Account Balance dropped below 100", capture.subject)
	assert.Contains(t, capture.html, "Prod Stripe")
	assert.Contains(t, capture.html, "42.5")
	assert.Contains(t, capture.html, "Balance is running low")
	assert.Contains(t, capture.html, "https://beacon.example.com/dashboard/1234")
}

func TestSendAlertEmailStatusCondition(t *testing.T) {
	capture := &captureProvider{}
	s := newTestSender(capture)

	s.SendAlertEmail(context.Background(), AlertEmail{
		To:           "ops@example.com",
		ServiceID:    "1234",
		ProviderName: "Resend",
		MetricName:   "Connection Status",
		Condition:    provider.ConditionStatusIs,
		Threshold:    "auth_failed",
		Value:        "auth_failed",
	})

	assert.Equal(t, "[Beacon] Resend: Connection Status status changed to auth_failed", capture.subject)
	// No label set, falls back to the provider name.
	assert.Contains(t, capture.html, "Alert: Resend")
}

func TestSendAlertEmailSwallowsDeliveryFailure(t *testing.T) {
	capture := &captureProvider{err: errors.New("smtp down")}
	s := newTestSender(capture)

	// Must not panic or propagate.
	s.SendAlertEmail(context.Background(), AlertEmail{
		To:           "ops@example.com",
		ProviderName: "GitHub",
		MetricName:   "Actions Minutes",
		Condition:    provider.ConditionGT,
		Threshold:    "1800",
		Value:        "1900",
	})
}

func TestNewProviderSelection(t *testing.T) {
	log := zap.NewNop()

	p := NewProvider(config.Config{Email: config.EmailConfig{Provider: "resend", ResendAPIKey: "re_x", ResendFrom: "alerts@example.com"}}, log)
	_, ok := p.(*resendProvider)
	assert.True(t, ok)

	p = NewProvider(config.Config{Email: config.EmailConfig{Provider: "smtp", SMTPHost: "localhost", SMTPPort: 25}}, log)
	_, ok = p.(*smtpProvider)
	assert.True(t, ok)

	p = NewProvider(config.Config{}, log)
	_, ok = p.(*noopProvider)
	assert.True(t, ok)
}
