package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com"

// TwilioWhatsApp sends reminders as WhatsApp messages through the Twilio
// Messages API.
type TwilioWhatsApp struct {
	AccountSID  string
	AuthToken   string
	From        string
	CountryCode string
	BaseURL     string
	Client      *http.Client
}

// Configured reports whether account credentials and a sender are set.
func (t *TwilioWhatsApp) Configured() bool {
	return t != nil && t.AccountSID != "" && t.AuthToken != "" && t.From != ""
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendReminderMessage renders r and posts it to phone. It returns the
// Twilio message SID.
func (t *TwilioWhatsApp) SendReminderMessage(ctx context.Context, phone string, r Reminder) (string, error) {
	if !t.Configured() {
		return "", ErrNotConfigured
	}

	to := NormalizePhone(phone, t.CountryCode)
	if to == "" {
		return "", fmt.Errorf("empty phone number")
	}

	body, err := RenderMessage(r)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("To", whatsappAddr(to))
	form.Set("From", whatsappAddr(t.From))
	form.Set("Body", body)

	base := t.BaseURL
	if base == "" {
		base = twilioBaseURL
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(base, "/"), url.PathEscape(t.AccountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating twilio request: %w", err)
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling twilio: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading twilio response: %w", err)
	}

	var tr twilioResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("decoding twilio response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("twilio error %d (status %d): %s", tr.Code, resp.StatusCode, tr.Message)
	}
	return tr.SID, nil
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
