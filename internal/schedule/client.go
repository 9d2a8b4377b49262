package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/beaconly/beacon/internal/config"
)

// pollCron drives every connected service on a five minute cadence.
const pollCron = "*/5 * * * *"

var ErrScheduleRejected = errors.New("schedule_rejected")

// Client manages the remote polling schedule attached to a connected
// service. Register returns the remote schedule ID; Cancel tears it down.
type Client interface {
	Register(ctx context.Context, serviceID string) (string, error)
	Cancel(ctx context.Context, scheduleID string) error
}

type qstashClient struct {
	http    *http.Client
	log     *zap.Logger
	baseURL string
	token   string
	appURL  string
}

type noopClient struct{}

// New returns the scheduler client configured for the deployment. Without
// a token the embedded sweep is the only poll driver, so registration
// becomes a no-op.
func New(cfg config.Config, log *zap.Logger) Client {
	if cfg.Scheduler.Token == "" {
		log.Named("schedule").Info("no scheduler token configured, using noop client")
		return noopClient{}
	}
	return &qstashClient{
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.Named("schedule"),
		baseURL: cfg.Scheduler.BaseURL,
		token:   cfg.Scheduler.Token,
		appURL:  cfg.AppURL,
	}
}

func (c *qstashClient) Register(ctx context.Context, serviceID string) (string, error) {
	destination := fmt.Sprintf("%s/api/cron/poll-service?serviceId=%s", c.appURL, url.QueryEscape(serviceID))
	endpoint := c.baseURL + "/v2/schedules/" + url.PathEscape(destination)

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Upstash-Cron", pollCron)

		resp, err := c.http.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", backoff.Permanent(fmt.Errorf("%w: status %d", ErrScheduleRejected, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("%w: status %d", ErrScheduleRejected, resp.StatusCode)
		}

		var body struct {
			ScheduleID string `json:"scheduleId"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
			return "", backoff.Permanent(err)
		}
		if body.ScheduleID == "" {
			return "", backoff.Permanent(ErrScheduleRejected)
		}
		return body.ScheduleID, nil
	}

	scheduleID, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		c.log.Warn("schedule registration failed",
			zap.String("service_id", serviceID),
			zap.Error(err),
		)
		return "", err
	}

	c.log.Info("schedule registered",
		zap.String("service_id", serviceID),
		zap.String("schedule_id", scheduleID),
	)
	return scheduleID, nil
}

func (c *qstashClient) Cancel(ctx context.Context, scheduleID string) error {
	if scheduleID == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v2/schedules/"+url.PathEscape(scheduleID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 means the schedule is already gone, which is the state we want.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: status %d", ErrScheduleRejected, resp.StatusCode)
	}
	return nil
}

func (noopClient) Register(ctx context.Context, serviceID string) (string, error) { return "", nil }

func (noopClient) Cancel(ctx context.Context, scheduleID string) error { return nil }
