package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/urbanwoods/api/internal/platform/config"
)

const smsHTTPTimeout = 10 * time.Second

// ErrSMSDisabled reports that no SMS provider is configured. Callers treat it
// like any other delivery failure: log and move on.
var ErrSMSDisabled = errors.New("notify: sms provider not configured")

// SMSSender delivers transactional SMS through an HTTP provider.
type SMSSender struct {
	cfg        config.SMSConfig
	httpClient *http.Client
}

// NewSMSSender constructs an SMS sender from configuration.
func NewSMSSender(cfg config.SMSConfig) *SMSSender {
	return &SMSSender{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: smsHTTPTimeout,
		},
	}
}

// Enabled reports whether the provider is configured.
func (s *SMSSender) Enabled() bool {
	return s != nil && strings.TrimSpace(s.cfg.Endpoint) != "" && strings.TrimSpace(s.cfg.AuthKey) != ""
}

// Send delivers one SMS to the given phone number. The number is normalized
// to E.164 with the configured country prefix before dispatch.
func (s *SMSSender) Send(ctx context.Context, phone, message string) error {
	if !s.Enabled() {
		return ErrSMSDisabled
	}
	normalized, err := NormalizePhoneNumber(phone, s.cfg.CountryPrefix)
	if err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return errors.New("notify: sms message is empty")
	}

	form := url.Values{}
	form.Set("authkey", s.cfg.AuthKey)
	form.Set("mobiles", normalized)
	form.Set("message", message)
	if sender := strings.TrimSpace(s.cfg.SenderID); sender != "" {
		form.Set("sender", sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send sms: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: sms provider returned status %d", resp.StatusCode)
	}
	return nil
}

// NormalizePhoneNumber folds stored phone formats into E.164. Bare 10-digit
// national numbers get the country prefix; numbers with a leading zero drop
// it first. Already-prefixed numbers pass through.
func NormalizePhoneNumber(raw, countryPrefix string) (string, error) {
	prefix := strings.TrimSpace(countryPrefix)
	if prefix == "" {
		prefix = "+91"
	}

	var digits strings.Builder
	raw = strings.TrimSpace(raw)
	plus := strings.HasPrefix(raw, "+")
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()

	switch {
	case number == "":
		return "", errors.New("notify: phone number is empty")
	case plus:
		return "+" + number, nil
	case len(number) == 10:
		return prefix + number, nil
	case len(number) == 11 && strings.HasPrefix(number, "0"):
		return prefix + number[1:], nil
	case len(number) == 12 && strings.HasPrefix(number, strings.TrimPrefix(prefix, "+")):
		return "+" + number, nil
	}
	return "", fmt.Errorf("notify: unrecognised phone number format %q", raw)
}
