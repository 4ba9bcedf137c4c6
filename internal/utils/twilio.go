package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioClient sends SMS through the Twilio Messages REST API.
type TwilioClient struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	DryRun     bool // log instead of sending

	HTTP *http.Client
}

type SendSMSResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func NewTwilioClient(accountSID, authToken, from string) *TwilioClient {
	return NewTwilioClientWithOptions(accountSID, authToken, from, "", false)
}

func NewTwilioClientWithOptions(accountSID, authToken, from, baseURL string, dryRun bool) *TwilioClient {
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	return &TwilioClient{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		DryRun:     dryRun,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
	}
}

// SendSMS posts one message. In dry-run mode (or without credentials) the
// message is only logged and a synthetic SID is returned.
func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) (*SendSMSResponse, error) {
	if c.DryRun || c.AccountSID == "" || c.AuthToken == "" {
		sid := "SMdry" + strings.ReplaceAll(uuid.NewString(), "-", "")
		log.Printf("[twilio][dry-run] to=%s from=%s sid=%s len=%d", to, c.From, sid, len(body))
		return &SendSMSResponse{SID: sid, Status: "queued"}, nil
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.BaseURL, url.PathEscape(c.AccountSID))
	form := url.Values{
		"To":   {to},
		"From": {c.From},
		"Body": {body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send SMS request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read twilio response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var te twilioError
		if json.Unmarshal(raw, &te) == nil && te.Message != "" {
			return nil, fmt.Errorf("twilio returned %d (code %d): %s", resp.StatusCode, te.Code, te.Message)
		}
		return nil, fmt.Errorf("twilio returned %d", resp.StatusCode)
	}

	var result SendSMSResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.ErrorCode != nil {
		return nil, fmt.Errorf("twilio message error %d: %s", *result.ErrorCode, result.ErrorMessage)
	}
	log.Printf("[twilio][send] to=%s sid=%s status=%s", to, result.SID, result.Status)
	return &result, nil
}

// Send satisfies the notification sender used by the reminder sweep.
func (c *TwilioClient) Send(ctx context.Context, to, body string) error {
	_, err := c.SendSMS(ctx, to, body)
	return err
}
