package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/beaconly/beacon/internal/config"
)

const resendAPIURL = "https://api.resend.com"

// Provider delivers a single email. Implementations wrap one outbound
// transport and report delivery failures as errors.
type Provider interface {
	Send(ctx context.Context, to, subject, html string) error
}

type resendProvider struct {
	http   *http.Client
	apiKey string
	from   string
	base   string
}

type smtpProvider struct {
	dialer *gomail.Dialer
	from   string
}

type noopProvider struct {
	log *zap.Logger
}

// NewProvider selects the email transport from configuration.
func NewProvider(cfg config.Config, log *zap.Logger) Provider {
	switch cfg.Email.Provider {
	case "resend":
		return &resendProvider{
			http:   &http.Client{Timeout: 15 * time.Second},
			apiKey: cfg.Email.ResendAPIKey,
			from:   cfg.Email.ResendFrom,
			base:   resendAPIURL,
		}
	case "smtp":
		return &smtpProvider{
			dialer: gomail.NewDialer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUsername, cfg.Email.SMTPPassword),
			from:   cfg.Email.SMTPFrom,
		}
	default:
		return &noopProvider{log: log.Named("notification.noop")}
	}
}

func (p *resendProvider) Send(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(map[string]any{
		"from":    p.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (p *smtpProvider) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)
	return p.dialer.DialAndSend(m)
}

func (p *noopProvider) Send(ctx context.Context, to, subject, html string) error {
	p.log.Info("email suppressed",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
