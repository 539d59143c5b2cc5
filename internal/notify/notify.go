// Package notify delivers price alerts by SMS via the Twilio REST API and
// builds the alert message texts. The same text is sent and persisted to the
// alert log.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	twilioBaseURL  = "https://api.twilio.com/2010-04-01"
	requestTimeout = 15 * time.Second
)

// TwilioSender sends SMS alerts via Twilio.
// Nil-safe: when not configured, Send logs the message and reports success.
type TwilioSender struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
	to         string
	logger     *slog.Logger
}

// NewTwilioSender creates a sender from Twilio credentials.
// Returns nil if accountSID or authToken is empty (SMS disabled).
func NewTwilioSender(accountSID, authToken, from, to string, logger *slog.Logger) *TwilioSender {
	if accountSID == "" || authToken == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioSender{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    twilioBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		logger:     logger,
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (s *TwilioSender) WithBaseURL(base string) *TwilioSender {
	s.baseURL = base
	return s
}

// Send delivers one SMS. A nil sender is a no-op that logs the message, so
// an unconfigured deployment still shows the alert in its logs.
func (s *TwilioSender) Send(ctx context.Context, message string) error {
	if s == nil {
		slog.Default().Info("SMS (simulation)", "message", message)
		return nil
	}

	form := url.Values{}
	form.Set("Body", message)
	form.Set("From", s.from)
	form.Set("To", s.to)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, body)
	}

	s.logger.Info("SMS sent", "to", s.to)
	return nil
}

// --------------------------------------------------------------------------
// Message builders — one text per alert kind, reused for SMS and alert log
// --------------------------------------------------------------------------

// OptimalPriceMessage announces a high-urgency buy signal.
func OptimalPriceMessage(route string, price float64, score int) string {
	return fmt.Sprintf("EXCELLENT PRICE %s: %.0f$ CAD (score %d%%). Best fare of the last 30 days.",
		route, price, score)
}

// PriceDropMessage announces a significant drop from the previous reading.
func PriceDropMessage(route string, previousPrice, currentPrice, percentageDrop float64) string {
	return fmt.Sprintf("PRICE DROP %s: %.0f$ CAD (-%.1f%%, was %.0f$). Time to buy.",
		route, currentPrice, percentageDrop, previousPrice)
}

// MaxPriceMessage announces the configured budget being reached.
func MaxPriceMessage(route string, currentPrice, maxPrice float64) string {
	return fmt.Sprintf("TARGET PRICE REACHED %s: %.0f$ CAD (your limit: %.0f$). Book now.",
		route, currentPrice, maxPrice)
}

// TestMessage verifies the SMS channel end to end.
func TestMessage() string {
	return "farewatch test: your price alert channel is working."
}
