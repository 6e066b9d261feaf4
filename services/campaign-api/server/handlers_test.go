package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Mutter0815/MassTexter/internal/campaign"
	"github.com/Mutter0815/MassTexter/internal/consent"
	"github.com/Mutter0815/MassTexter/internal/store"
)

type fakeStore struct {
	balance           int
	balanceErr        error
	insertCampaignHit bool
	gotRecipients     []string
	queueErr          error
	queuedAt          time.Time
	cancelErr         error
	camp              campaign.Campaign
	getErr            error
	emailStatus       map[string]string
	credits           int
	creditsErr        error
	consent           campaign.Consent
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(&sql.Tx{})
}

func (f *fakeStore) InsertCampaign(ctx context.Context, tx *sql.Tx, accountID int64, body string, recipients []string, scheduledAt *time.Time) (int64, error) {
	f.insertCampaignHit = true
	f.gotRecipients = recipients
	return 42, nil
}

func (f *fakeStore) GetCampaign(ctx context.Context, id int64) (campaign.Campaign, error) {
	if f.getErr != nil {
		return campaign.Campaign{}, f.getErr
	}
	return f.camp, nil
}

func (f *fakeStore) ListCampaigns(ctx context.Context, limit, offset int) ([]campaign.Campaign, error) {
	return []campaign.Campaign{f.camp}, nil
}

func (f *fakeStore) QueueCampaign(ctx context.Context, id int64, at time.Time) error {
	f.queuedAt = at
	return f.queueErr
}

func (f *fakeStore) CancelCampaign(ctx context.Context, id int64) error {
	return f.cancelErr
}

func (f *fakeStore) CreateAccount(ctx context.Context, name string, startingBalance int) (int64, error) {
	return 9, nil
}

func (f *fakeStore) GetBalance(ctx context.Context, accountID int64) (int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeStore) AddCredits(ctx context.Context, accountID int64, credits int) error {
	f.credits += credits
	return f.creditsErr
}

func (f *fakeStore) SetEmailOptIn(ctx context.Context, phone, emailStatus string) error {
	if f.emailStatus == nil {
		f.emailStatus = map[string]string{}
	}
	f.emailStatus[phone] = emailStatus
	return nil
}

func (f *fakeStore) GetConsent(ctx context.Context, phone string) (campaign.Consent, error) {
	if f.consent.PhoneNumber == "" {
		return campaign.Consent{}, store.ErrNotFound
	}
	return f.consent, nil
}

type fakeInbound struct {
	from, body string
	reply      string
	err        error
}

func (f *fakeInbound) HandleInbound(ctx context.Context, from, body string) (string, error) {
	f.from, f.body = from, body
	return f.reply, f.err
}

func newTestServer(fs *fakeStore, inbound *fakeInbound) *http.Server {
	h := &Handlers{
		Store:           fs,
		Inbound:         inbound,
		Signer:          consent.NewLinkSigner("test-secret"),
		StartingBalance: 500,
	}
	return NewHTTPServer(":0", h)
}

func TestCreateCampaign_OK(t *testing.T) {
	fs := &fakeStore{balance: 5}
	srv := newTestServer(fs, &fakeInbound{})
	rr := httptest.NewRecorder()

	body := bytes.NewBufferString(`{
		"account_id": 1,
		"body": "Hello",
		"recipients": ["1111111111", "555 123 4567"]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/campaigns", body)
	req.Header.Set("Content-Type", "application/json")

	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	var resp campaign.CreateCampaignResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 42 {
		t.Fatalf("want id=42, got %d", resp.ID)
	}
	if !fs.insertCampaignHit {
		t.Fatal("insertCampaign not called")
	}
	if len(fs.gotRecipients) != 2 || fs.gotRecipients[1] != "5551234567" {
		t.Fatalf("recipients not normalized: %#v", fs.gotRecipients)
	}
}

func TestCreateCampaign_InsufficientBalance(t *testing.T) {
	fs := &fakeStore{balance: 0}
	srv := newTestServer(fs, &fakeInbound{})
	rr := httptest.NewRecorder()

	body := bytes.NewBufferString(`{"account_id":1,"body":"Hello","recipients":["1111111111"]}`)
	req := httptest.NewRequest(http.MethodPost, "/campaigns", body)
	req.Header.Set("Content-Type", "application/json")

	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status=%d, want 402", rr.Code)
	}
	if fs.insertCampaignHit {
		t.Fatal("campaign must be rejected before it is created")
	}
}

func TestCreateCampaign_ValidationError(t *testing.T) {
	srv := newTestServer(&fakeStore{balance: 5}, &fakeInbound{})
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodPost, "/campaigns",
		bytes.NewBufferString(`{"account_id":1,"body":"Hello","recipients":[]}`))
	req.Header.Set("Content-Type", "application/json")

	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestQueueCampaign_Conflict(t *testing.T) {
	fs := &fakeStore{queueErr: store.ErrInvalidTransition}
	srv := newTestServer(fs, &fakeInbound{})
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/7/queue", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d, want 409", rr.Code)
	}
}

func TestCancelCampaign_NotFound(t *testing.T) {
	fs := &fakeStore{cancelErr: store.ErrNotFound}
	srv := newTestServer(fs, &fakeInbound{})
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodPost, "/campaigns/7/cancel", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestGetCampaign_StatusPayload(t *testing.T) {
	fs := &fakeStore{camp: campaign.Campaign{
		ID:         7,
		Status:     campaign.StatusSent,
		SentCount:  1,
		Recipients: []string{"1111111111", "2222222222"},
		CreatedAt:  time.Unix(0, 0).UTC(),
	}}
	srv := newTestServer(fs, &fakeInbound{})
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodGet, "/campaigns/7", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	var resp campaign.CampaignStatusResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != campaign.StatusSent || resp.SentCount != 1 || resp.TotalRecipients != 2 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestInboundSMS_RepliesWithTwiML(t *testing.T) {
	inbound := &fakeInbound{reply: consent.ReplyOptedOut}
	srv := newTestServer(&fakeStore{}, inbound)
	rr := httptest.NewRecorder()

	form := url.Values{}
	form.Set("From", "3333333333")
	form.Set("Body", "NO")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/inbound",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "xml") {
		t.Fatalf("content type = %q, want xml", ct)
	}
	if !strings.Contains(rr.Body.String(), consent.ReplyOptedOut) {
		t.Fatalf("reply missing from TwiML: %s", rr.Body.String())
	}
	if inbound.from != "3333333333" || inbound.body != "NO" {
		t.Fatalf("handler got from=%q body=%q", inbound.from, inbound.body)
	}
}

func TestInboundSMS_MissingFrom(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeInbound{})
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/inbound", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestInboundSMS_HandlerErrorStaysTwiML(t *testing.T) {
	inbound := &fakeInbound{err: errors.New("db gone")}
	srv := newTestServer(&fakeStore{}, inbound)
	rr := httptest.NewRecorder()

	form := url.Values{}
	form.Set("From", "3333333333")
	form.Set("Body", "NO")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms/inbound",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "xml") {
		t.Fatalf("content type = %q, want xml", ct)
	}
	if strings.Contains(rr.Body.String(), "<Message>") {
		t.Fatalf("error response must not carry a reply: %s", rr.Body.String())
	}
}

func TestConfirmEmailOptIn(t *testing.T) {
	fs := &fakeStore{}
	srv := newTestServer(fs, &fakeInbound{})

	signer := consent.NewLinkSigner("test-secret")
	token := signer.Sign("5551234567", time.Hour)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/opt-in/confirm?token="+token+"&response=accept", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	if fs.emailStatus["5551234567"] != campaign.EmailOptInAccepted {
		t.Fatalf("email status = %q, want accepted", fs.emailStatus["5551234567"])
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet,
		"/opt-in/confirm?token="+token+"&response=later", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if fs.emailStatus["5551234567"] != campaign.EmailOptInDeclined {
		t.Fatalf("email status = %q, want declined", fs.emailStatus["5551234567"])
	}
}

func TestConfirmEmailOptIn_BadToken(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeInbound{})
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodGet, "/opt-in/confirm?token=garbage&response=accept", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestGetConsent(t *testing.T) {
	fs := &fakeStore{consent: campaign.Consent{
		PhoneNumber: "3333333333",
		Status:      campaign.ConsentOptedOut,
		EmailStatus: campaign.EmailOptInNone,
	}}
	srv := newTestServer(fs, &fakeInbound{})
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodGet, "/consents/3333333333", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	var resp campaign.Consent
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != campaign.ConsentOptedOut {
		t.Fatalf("status = %q, want opted_out", resp.Status)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/consents/9999999999", nil)
	srv2 := newTestServer(&fakeStore{}, &fakeInbound{})
	srv2.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestPaymentWebhook_TopUp(t *testing.T) {
	fs := &fakeStore{}
	srv := newTestServer(fs, &fakeInbound{})
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment",
		bytes.NewBufferString(`{"account_id":1,"credits":500}`))
	req.Header.Set("Content-Type", "application/json")

	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rr.Code, rr.Body.String())
	}
	if fs.credits != 500 {
		t.Fatalf("credits = %d, want 500", fs.credits)
	}
}
