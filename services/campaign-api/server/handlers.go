package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/MassTexter/internal/campaign"
	"github.com/Mutter0815/MassTexter/internal/consent"
	"github.com/Mutter0815/MassTexter/internal/store"
	"github.com/Mutter0815/MassTexter/pkg/logx"
)

type storeAPI interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	InsertCampaign(ctx context.Context, tx *sql.Tx, accountID int64, body string, recipients []string, scheduledAt *time.Time) (int64, error)
	GetCampaign(ctx context.Context, id int64) (campaign.Campaign, error)
	ListCampaigns(ctx context.Context, limit, offset int) ([]campaign.Campaign, error)
	QueueCampaign(ctx context.Context, id int64, at time.Time) error
	CancelCampaign(ctx context.Context, id int64) error
	CreateAccount(ctx context.Context, name string, startingBalance int) (int64, error)
	GetBalance(ctx context.Context, accountID int64) (int, error)
	AddCredits(ctx context.Context, accountID int64, credits int) error
	SetEmailOptIn(ctx context.Context, phone, emailStatus string) error
	GetConsent(ctx context.Context, phone string) (campaign.Consent, error)
}

type inboundAPI interface {
	HandleInbound(ctx context.Context, from, body string) (string, error)
}

type Handlers struct {
	Store           storeAPI
	Inbound         inboundAPI
	Signer          *consent.LinkSigner
	StartingBalance int
}

func NewHandlers(s *store.Store, inbound *consent.Handler, signer *consent.LinkSigner, startingBalance int) *Handlers {
	return &Handlers{Store: s, Inbound: inbound, Signer: signer, StartingBalance: startingBalance}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) CreateAccount(c *gin.Context) {
	var req campaign.CreateAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	id, err := h.Store.CreateAccount(ctx, req.Name, h.StartingBalance)
	if err != nil {
		logx.L().Errorw("create_account_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create error"})
		return
	}
	c.JSON(http.StatusOK, campaign.CreateAccountResp{ID: id, Balance: h.StartingBalance})
}

// PaymentWebhook is the top-up collaborator: the payment provider
// reports a completed checkout and the plan's credits are added.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	var req campaign.PaymentWebhookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.AddCredits(ctx, req.AccountID, req.Credits); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		logx.L().Errorw("add_credits_error", "account_id", req.AccountID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "top-up error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	// Soft pre-check only; the authoritative check stays per-recipient
	// at dispatch time.
	balance, err := h.Store.GetBalance(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		logx.L().Errorw("get_balance_error", "account_id", req.AccountID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "balance error"})
		return
	}
	if balance < 1 {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
		return
	}

	recipients := make([]string, len(req.Recipients))
	for i, r := range req.Recipients {
		recipients[i] = consent.NormalizePhone(r)
	}

	var campaignID int64
	err = h.Store.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := h.Store.InsertCampaign(ctx, tx, req.AccountID, req.Body, recipients, req.ScheduledAt)
		if err != nil {
			return err
		}
		campaignID = id
		return nil
	})
	if err != nil {
		logx.L().Errorw("insert_campaign_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create error"})
		return
	}

	c.JSON(http.StatusOK, campaign.CreateCampaignResp{ID: campaignID})
}

func (h *Handlers) QueueCampaign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req campaign.QueueCampaignReq
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	at := time.Now().UTC()
	if req.ScheduledAt != nil {
		at = req.ScheduledAt.UTC()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.QueueCampaign(ctx, id, at); err != nil {
		h.transitionError(c, id, "queue", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": campaign.StatusQueued})
}

func (h *Handlers) CancelCampaign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.CancelCampaign(ctx, id); err != nil {
		h.transitionError(c, id, "cancel", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": campaign.StatusDraft})
}

func (h *Handlers) transitionError(c *gin.Context, id int64, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
	case errors.Is(err, store.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
	default:
		logx.L().Errorw("campaign_"+op+"_error", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " error"})
	}
}

func (h *Handlers) GetCampaign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	camp, err := h.Store.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		logx.L().Errorw("get_campaign_error", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get error"})
		return
	}

	c.JSON(http.StatusOK, campaign.CampaignStatusResp{
		ID:              camp.ID,
		Status:          camp.Status,
		SentCount:       camp.SentCount,
		TotalRecipients: len(camp.Recipients),
		ScheduledAt:     camp.ScheduledAt,
		CreatedAt:       camp.CreatedAt,
	})
}

func (h *Handlers) ListCampaigns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Store.ListCampaigns(ctx, limit, offset)
	if err != nil {
		logx.L().Errorw("list_campaigns_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
		return
	}

	out := make([]campaign.CampaignListItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, campaign.CampaignListItem{
			ID:              r.ID,
			Status:          r.Status,
			SentCount:       r.SentCount,
			TotalRecipients: len(r.Recipients),
			ScheduledAt:     r.ScheduledAt,
			CreatedAt:       r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
