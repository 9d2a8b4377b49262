package notification

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/beaconly/beacon/internal/config"
	"github.com/beaconly/beacon/internal/provider"
	"github.com/beaconly/beacon/internal/telemetry"
)

// AlertEmail carries everything needed to render one alert notification.
type AlertEmail struct {
	To           string
	ServiceID    string
	ServiceLabel string
	ProviderName string
	MetricName   string
	Condition    provider.Condition
	Threshold    string
	Value        string
	Message      string
}

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Provider Provider
	Metrics  *telemetry.Metrics `optional:"true"`
}

// Sender formats and delivers alert emails. Delivery failures are logged
// and counted but never propagated; a down mail provider must not stall
// the polling pipeline.
type Sender struct {
	appURL   string
	log      *zap.Logger
	provider Provider
	metrics  *telemetry.Metrics
}

func NewSender(p Params) *Sender {
	return &Sender{
		appURL:   strings.TrimRight(p.Config.AppURL, "/"),
		log:      p.Log.Named("notification"),
		provider: p.Provider,
		metrics:  p.Metrics,
	}
}

func conditionLabel(c provider.Condition) string {
	switch c {
	case provider.ConditionLT:
		return "dropped below"
	case provider.ConditionGT:
		return "exceeded"
	case provider.ConditionEQ:
		return "equals"
	case provider.ConditionStatusIs:
		return "status changed to"
	default:
		return "crossed"
	}
}

// SendAlertEmail delivers one alert notification.
func (s *Sender) SendAlertEmail(ctx context.Context, email AlertEmail) {
	subject := fmt.Sprintf("[Beacon] %s: %s %s %s",
		email.ProviderName, email.MetricName, conditionLabel(email.Condition), email.Threshold)

	body := s.renderAlertBody(email)

	if err := s.provider.Send(ctx, email.To, subject, body); err != nil {
		s.metrics.RecordNotification("error")
		s.log.Error("alert email delivery failed",
			zap.String("service_id", email.ServiceID),
			zap.String("to", email.To),
			zap.Error(err),
		)
		return
	}

	s.metrics.RecordNotification("sent")
	s.log.Info("alert email sent",
		zap.String("service_id", email.ServiceID),
		zap.String("metric", email.MetricName),
	)
}

func (s *Sender) renderAlertBody(email AlertEmail) string {
	label := email.ServiceLabel
	if label == "" {
		label = email.ProviderName
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family:sans-serif;max-width:560px;margin:0 auto">`)
	fmt.Fprintf(&b, `<h2 style="color:#dc2626">Alert: %s</h2>`, html.EscapeString(label))
	fmt.Fprintf(&b, `<p><strong>%s</strong> %s <strong>%s</strong> (current value: %s).</p>`,
		html.EscapeString(email.MetricName),
		conditionLabel(email.Condition),
		html.EscapeString(email.Threshold),
		html.EscapeString(email.Value),
	)
	if email.Message != "" {
		fmt.Fprintf(&b, `<p>%s</p>`, html.EscapeString(email.Message))
	}
	fmt.Fprintf(&b, `<p><a href="%s/dashboard/%s">Open the dashboard</a> to review this service.</p>`,
		s.appURL, html.EscapeString(email.ServiceID))
	b.WriteString(`</div>`)
	return b.String()
}
