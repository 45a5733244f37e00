// Package pushover delivers notifications through the Pushover message API.
package pushover

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultEndpoint = "https://api.pushover.net/1/messages.json"

// DeliveryError is any non-2xx transport response, carrying the provider
// status and body.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("pushover delivery failed: status %d: %s", e.Status, e.Body)
}

// Markers in provider error text that indicate bad credentials. Such
// failures will not self-resolve by retrying.
var permanentMarkers = []string{
	"token is invalid",
	"user key is invalid",
	"user is invalid",
	"application token is invalid",
}

// IsPermanentError reports whether err stems from invalid delivery
// credentials. Everything else is treated as transient.
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

type Config struct {
	Token     string
	UserKey   string
	Endpoint  string  // defaults to DefaultEndpoint
	RateLimit float64 // requests per second; 0 disables limiting
	Timeout   time.Duration
}

type Dispatcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) *Dispatcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Dispatcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

// Send posts one notification. params are merged into the form verbatim,
// except the structurally protected fields user, token and message, which
// always come from the dispatcher config and arguments. It returns the
// provider response body as delivery detail.
func (d *Dispatcher) Send(ctx context.Context, message, title string, params map[string]string) (string, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	form := url.Values{}
	for k, v := range params {
		switch k {
		case "user", "token", "message":
			continue
		}
		form.Set(k, v)
	}
	form.Set("user", d.cfg.UserKey)
	form.Set("token", d.cfg.Token)
	form.Set("message", message)
	if title != "" {
		form.Set("title", title)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read pushover response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &DeliveryError{Status: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}
