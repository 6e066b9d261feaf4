package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mutter0815/MassTexter/pkg/config"
)

// Twilio talks to the Twilio Messages REST API. Credentials and the
// default sender number are resolved once from config at construction;
// there is no per-call fallback.
type Twilio struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
}

func NewTwilio(cfg config.GatewayConfig, timeout time.Duration) *Twilio {
	return &Twilio{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
	}
}

// From is the configured default sender number.
func (t *Twilio) From() string { return t.from }

func (t *Twilio) Send(ctx context.Context, to, from, body string) (string, error) {
	if from == "" {
		from = t.from
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var ok struct {
			Sid string `json:"sid"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
			return "", &Error{StatusCode: resp.StatusCode, Message: "undecodable response: " + err.Error()}
		}
		if ok.Sid == "" {
			return "", &Error{StatusCode: resp.StatusCode, Message: "response without delivery id"}
		}
		return ok.Sid, nil
	}

	var fail struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&fail)
	if fail.Message == "" {
		fail.Message = resp.Status
	}
	return "", &Error{StatusCode: resp.StatusCode, Code: fail.Code, Message: fail.Message}
}
