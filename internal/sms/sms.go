// Package sms delivers possession-proof codes to sitter phones. Delivery is
// best-effort by design: a failed send never invalidates the issued code,
// the caller may simply retry. Without provider credentials the package
// degrades to a dispatcher that logs the message instead of sending it,
// which is the intended developer mode.
package sms

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

// Dispatcher sends a text message to a phone number.
type Dispatcher interface {
	Send(ctx context.Context, to, body string) error
}

// ProviderDispatcher posts messages to a Twilio-compatible REST endpoint
// using HTTP basic auth. Only the destination number ever appears in logs;
// message bodies carry codes and are never logged here.
type ProviderDispatcher struct {
	accountID string
	authToken string
	from      string
	baseURL   string
	client    *http.Client
}

// LogDispatcher writes the message to the process log instead of sending
// it. Used when no SMS credentials are configured.
type LogDispatcher struct{}

// New selects a dispatcher from configuration. All three credential values
// must be present for real delivery; otherwise the log-only dispatcher is
// returned and a notice is printed once at startup.
func New(accountID, authToken, from, baseURL string) Dispatcher {
	if accountID == "" || authToken == "" || from == "" {
		log.Printf("sms: no provider credentials, codes will be logged instead of sent")
		return LogDispatcher{}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &ProviderDispatcher{
		accountID: accountID,
		authToken: authToken,
		from:      from,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message. Non-2xx provider responses are returned as errors
// with the status included; the response body is drained and discarded.
func (d *ProviderDispatcher) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", d.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", d.baseURL, d.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(d.accountID, d.authToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms: provider returned %s", resp.Status)
	}
	return nil
}

// Send logs the message. The code is visible here on purpose: this path
// only exists in developer mode where the operator is the recipient.
func (LogDispatcher) Send(_ context.Context, to, body string) error {
	log.Printf("sms (dev mode): to=%s body=%q", to, body)
	return nil
}
