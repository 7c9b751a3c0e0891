package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
)

// restProvider dials through a Twilio-compatible REST API.
type restProvider struct {
	endpoint   string
	accountSID string
	authToken  string
	fromNumber string
	client     *http.Client
}

func NewRESTProvider(cfg config.TelephonyConfig) Provider {
	return &restProvider{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
	}
}

type createCallResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (p *restProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (string, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", p.fromNumber)
	form.Set("Url", req.VoiceURL)
	form.Set("StatusCallback", req.StatusURL)
	form.Set("StatusCallbackEvent", "initiated ringing answered completed")

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", p.endpoint, p.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(p.accountSID, p.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	defer resp.Body.Close()

	var body createCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode call response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if body.Message != "" {
			return "", fmt.Errorf("provider rejected call: %s (status %s)", body.Message, resp.Status)
		}
		return "", fmt.Errorf("provider rejected call: status %s", resp.Status)
	}
	if body.SID == "" {
		return "", fmt.Errorf("provider returned no call sid")
	}
	return body.SID, nil
}
